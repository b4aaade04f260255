package remote

import (
	"bytes"
	"context"
	"net"
	"os"
	"strconv"
	"time"

	shellquote "github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	"github.com/suitedirector/suitedirector/log"
	"github.com/suitedirector/suitedirector/types"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ScriptShell is the interpreter the deployment script is piped into.
const ScriptShell = "bash"

type SSHOptions struct {
	User string
	// PrivateKey is a PEM encoded private key.
	PrivateKey []byte
	Port       int
	// KnownHostsPath enables host key verification. Freshly launched instances
	// have unknown host keys, so verification is off when empty.
	KnownHostsPath string
	DialTimeout    time.Duration
}

type SSHExecutor struct {
	config *ssh.ClientConfig
	port   int
	dial   time.Duration
}

var _ Executor = (*SSHExecutor)(nil)

// NewSSHExecutorFromFile reads the private key at keyPath.
func NewSSHExecutorFromFile(keyPath string, opts SSHOptions) (*SSHExecutor, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, errors.Wrap(err, "NewSSHExecutor: read private key")
	}
	opts.PrivateKey = key
	return NewSSHExecutor(opts)
}

func NewSSHExecutor(opts SSHOptions) (*SSHExecutor, error) {
	signer, err := ssh.ParsePrivateKey(opts.PrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "NewSSHExecutor: parse private key")
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if opts.KnownHostsPath != "" {
		hostKeyCallback, err = knownhosts.New(opts.KnownHostsPath)
		if err != nil {
			return nil, errors.Wrap(err, "NewSSHExecutor: load known hosts")
		}
	}

	if opts.User == "" {
		opts.User = "ec2-user"
	}
	if opts.Port == 0 {
		opts.Port = 22
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 30 * time.Second
	}

	return &SSHExecutor{
		config: &ssh.ClientConfig{
			User:            opts.User,
			Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
			HostKeyCallback: hostKeyCallback,
			Timeout:         opts.DialTimeout,
		},
		port: opts.Port,
		dial: opts.DialTimeout,
	}, nil
}

// Connect dials address, which may carry its own port.
func (e *SSHExecutor) Connect(ctx context.Context, address string) (Conn, error) {
	hostPort := address
	if _, _, err := net.SplitHostPort(address); err != nil {
		hostPort = net.JoinHostPort(address, strconv.Itoa(e.port))
	}

	dialer := net.Dialer{Timeout: e.dial}
	netConn, err := dialer.DialContext(ctx, "tcp", hostPort)
	if err != nil {
		return nil, types.NewError(types.ExecutionFailure, errors.Wrapf(err, "Connect: dial %s", hostPort))
	}

	// The handshake itself does not watch ctx.
	if deadline, ok := ctx.Deadline(); ok {
		_ = netConn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(netConn, hostPort, e.config)
	if err != nil {
		netConn.Close()
		return nil, types.NewError(types.ExecutionFailure, errors.Wrapf(err, "Connect: handshake %s", hostPort))
	}
	_ = netConn.SetDeadline(time.Time{})

	log.Debugf("connected to %s as %s", hostPort, e.config.User)
	return &sshConn{client: ssh.NewClient(c, chans, reqs)}, nil
}

type sshConn struct {
	client *ssh.Client
}

// ScriptCommand is the remote command line a script is run with.
func ScriptCommand(args ...string) string {
	if len(args) == 0 {
		return ScriptShell + " -s"
	}
	return ScriptShell + " -s -- " + shellquote.Join(args...)
}

func (c *sshConn) RunScript(ctx context.Context, script []byte, args ...string) (*Result, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, types.NewError(types.ExecutionFailure, errors.Wrap(err, "RunScript: open session"))
	}
	defer session.Close()

	session.Stdin = bytes.NewReader(script)

	type outcome struct {
		output []byte
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		output, err := session.CombinedOutput(ScriptCommand(args...))
		done <- outcome{output: output, err: err}
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		session.Close()
		return nil, types.NewError(types.ExecutionFailure, errors.Wrap(ctx.Err(), "RunScript"))
	case res := <-done:
		if res.err == nil {
			return &Result{Output: res.output, ExitCode: 0}, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(res.err, &exitErr) {
			return &Result{Output: res.output, ExitCode: exitErr.ExitStatus()}, nil
		}
		return nil, types.NewError(types.ExecutionFailure, errors.Wrap(res.err, "RunScript"))
	}
}

func (c *sshConn) Close() error {
	return c.client.Close()
}
