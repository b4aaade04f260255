package types

// DeviceProfile is a request for Count replicas of one OS type/version
// combination. It only exists on the inbound payload.
type DeviceProfile struct {
	OSType    string `json:"osType"`
	OSVersion string `json:"osVersion"`
	Count     *int   `json:"count"`
}

// DeviceUnit is one concrete device to provision and test.
type DeviceUnit struct {
	OSType    string `json:"osType" msgpack:"osType"`
	OSVersion string `json:"osVersion" msgpack:"osVersion"`
}

func (d DeviceUnit) String() string {
	return d.OSType + " (" + d.OSVersion + ")"
}

// SuiteRequest - struct to unpack the payload sent to /register-suites
type SuiteRequest struct {
	SuiteName    string          `json:"suiteName"`
	ExeBucketURI string          `json:"exeBucketUri"`
	TenantID     string          `json:"tenantId"`
	DBURL        string          `json:"dbUrl"`
	Devices      []DeviceProfile `json:"devices"`
}

// SuiteChunk is the unit of work carried on the event bus. Devices never
// holds more than the configured chunk size.
type SuiteChunk struct {
	SuiteName    string       `json:"suiteName" msgpack:"suiteName"`
	ExeBucketURI string       `json:"exeBucketUri" msgpack:"exeBucketUri"`
	TenantID     string       `json:"tenantId" msgpack:"tenantId"`
	DBURL        string       `json:"dbUrl" msgpack:"dbUrl"`
	Devices      []DeviceUnit `json:"devices" msgpack:"devices"`
}

// RegisterResponse is the body returned by /register-suites
type RegisterResponse struct {
	Message string `json:"message"`
}
