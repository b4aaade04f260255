package director

import (
	"fmt"
	"math/rand"
)

// SessionIDDigits is the fixed width of a session id. Ids are random and only
// correlate log lines; they are not unique keys.
const SessionIDDigits = 5

func NewSessionID() string {
	return fmt.Sprintf("%0*d", SessionIDDigits, rand.Intn(100000))
}
