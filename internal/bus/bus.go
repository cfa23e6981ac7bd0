package bus

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const SockName = "control.sock"
const PidName = "copresenter.pid"
const ProtoVer = "1.0"

const replyTimeout = 5 * time.Second

// Commands understood by the daemon. The first byte of a request line selects
// the command; the rest of the line is its argument.
const (
	CmdStatus     byte = 's'
	CmdStatusJSON byte = 'j'
	CmdWave       byte = 'w'
	CmdInterrupt  byte = 'i'
	CmdStyle      byte = 'y'
	CmdVersion    byte = 'v'
	CmdQuit       byte = 'q'
)

func runtimeDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "copresenter"), nil
}

// ~/.cache/copresenter/control.sock
func getSockPath() (string, error) {
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SockName), nil
}

// ~/.cache/copresenter/copresenter.pid
func getPidPath() (string, error) {
	dir, err := runtimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, PidName), nil
}

func SockPath() (string, error) {
	return getSockPath()
}

func PidPath() (string, error) {
	return getPidPath()
}

type socketManager struct {
	path string
}

func defaultSocketManager() (*socketManager, error) {
	p, err := getSockPath()
	if err != nil {
		return nil, err
	}
	return &socketManager{path: p}, nil
}

func (s *socketManager) listen() (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, err
	}
	_ = os.Remove(s.path) // stale socket from last run
	return net.Listen("unix", s.path)
}

func (s *socketManager) dial() (net.Conn, error) {
	return net.Dial("unix", s.path)
}

func (s *socketManager) send(cmd byte, arg string) (string, error) {
	c, err := s.dial()
	if err != nil {
		return "", err
	}
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(replyTimeout))

	line := append([]byte{cmd}, strings.ReplaceAll(arg, "\n", " ")...)
	if _, err := c.Write(append(line, '\n')); err != nil {
		return "", err
	}
	return bufio.NewReader(c).ReadString('\n')
}

func Listen() (net.Listener, error) {
	sm, err := defaultSocketManager()
	if err != nil {
		return nil, err
	}
	return sm.listen()
}

func Dial() (net.Conn, error) {
	sm, err := defaultSocketManager()
	if err != nil {
		return nil, err
	}
	return sm.dial()
}

// SendCommand sends one request and returns the daemon's one-line reply.
func SendCommand(cmd byte, arg string) (string, error) {
	sm, err := defaultSocketManager()
	if err != nil {
		return "", err
	}
	return sm.send(cmd, arg)
}

// ReadRequest parses one request line.
func ReadRequest(r *bufio.Reader) (cmd byte, arg string, err error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return 0, "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return 0, "", errors.New("empty request")
	}
	return line[0], line[1:], nil
}

type pidManager struct {
	path string
}

func defaultPidManager() (*pidManager, error) {
	p, err := getPidPath()
	if err != nil {
		return nil, err
	}
	return &pidManager{path: p}, nil
}

// checkExisting fails if a live daemon owns the pid file and removes stale or
// invalid pid files.
func (p *pidManager) checkExisting() error {
	pidData, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil // no existing daemon
	}
	if err != nil {
		return err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		_ = os.Remove(p.path) // invalid pid file, assume stale
		return nil
	}

	if !p.isProcessAlive(pid) {
		_ = os.Remove(p.path)
		return nil
	}
	return fmt.Errorf("daemon already running with PID %d", pid)
}

func (p *pidManager) isProcessAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func (p *pidManager) create() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func (p *pidManager) remove() error {
	return os.Remove(p.path)
}

func CheckExistingDaemon() error {
	pm, err := defaultPidManager()
	if err != nil {
		return err
	}
	return pm.checkExisting()
}

func CreatePidFile() error {
	pm, err := defaultPidManager()
	if err != nil {
		return err
	}
	return pm.create()
}

func RemovePidFile() error {
	pm, err := defaultPidManager()
	if err != nil {
		return err
	}
	return pm.remove()
}
