package bus

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestPidManagerBasics(t *testing.T) {
	tempDir := t.TempDir()

	testPidManager := &pidManager{
		path: filepath.Join(tempDir, PidName),
	}

	t.Run("create and remove PID file", func(t *testing.T) {
		if err := testPidManager.create(); err != nil {
			t.Fatalf("create failed: %v", err)
		}

		pidData, err := os.ReadFile(testPidManager.path)
		if err != nil {
			t.Fatalf("failed to read PID file: %v", err)
		}

		expectedPid := strconv.Itoa(os.Getpid())
		if string(pidData) != expectedPid {
			t.Errorf("PID file contains %q, expected %q", string(pidData), expectedPid)
		}

		if err := testPidManager.remove(); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		if _, err := os.Stat(testPidManager.path); !os.IsNotExist(err) {
			t.Error("PID file should not exist after removal")
		}
	})

	t.Run("checkExisting with no PID file", func(t *testing.T) {
		if err := testPidManager.checkExisting(); err != nil {
			t.Errorf("checkExisting should not error when no PID file exists: %v", err)
		}
	})

	t.Run("checkExisting with current process", func(t *testing.T) {
		if err := testPidManager.create(); err != nil {
			t.Fatalf("create failed: %v", err)
		}
		defer testPidManager.remove()

		if err := testPidManager.checkExisting(); err == nil {
			t.Error("checkExisting should fail when process is running")
		}
	})

	t.Run("checkExisting with stale PID file", func(t *testing.T) {
		if err := os.WriteFile(testPidManager.path, []byte("99999999"), 0o600); err != nil {
			t.Fatalf("failed to write stale PID file: %v", err)
		}

		if err := testPidManager.checkExisting(); err != nil {
			t.Errorf("checkExisting should succeed with stale PID: %v", err)
		}
		if _, err := os.Stat(testPidManager.path); !os.IsNotExist(err) {
			t.Error("stale PID file should be removed")
		}
	})

	t.Run("checkExisting with invalid PID file", func(t *testing.T) {
		if err := os.WriteFile(testPidManager.path, []byte("invalid"), 0o600); err != nil {
			t.Fatalf("failed to write invalid PID file: %v", err)
		}

		if err := testPidManager.checkExisting(); err != nil {
			t.Errorf("checkExisting should succeed with invalid PID: %v", err)
		}
		if _, err := os.Stat(testPidManager.path); !os.IsNotExist(err) {
			t.Error("invalid PID file should be removed")
		}
	})
}

func TestIsProcessAlive(t *testing.T) {
	pm := &pidManager{}

	if !pm.isProcessAlive(os.Getpid()) {
		t.Error("current process should be alive")
	}
	if pm.isProcessAlive(99999999) {
		t.Error("non-existent process should not be alive")
	}
}

// serve answers every request with the parsed command and argument.
func serve(t *testing.T, l net.Listener) {
	t.Helper()
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				cmd, arg, err := ReadRequest(bufio.NewReader(c))
				if err != nil {
					return
				}
				switch cmd {
				case CmdStatus:
					fmt.Fprint(c, "STATUS state=listening\n")
				case CmdStyle:
					fmt.Fprintf(c, "OK style=%s\n", arg)
				case CmdVersion:
					fmt.Fprintf(c, "STATUS proto=%s\n", ProtoVer)
				default:
					fmt.Fprintf(c, "ERR unknown=%q\n", cmd)
				}
			}(conn)
		}
	}()
}

func TestSocketManager_Send(t *testing.T) {
	sm := &socketManager{path: filepath.Join(t.TempDir(), SockName)}

	if _, err := sm.send(CmdStatus, ""); err == nil {
		t.Error("send should fail when no listener exists")
	}

	l, err := sm.listen()
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer l.Close()
	serve(t, l)

	tests := []struct {
		cmd  byte
		arg  string
		want string
	}{
		{CmdStatus, "", "STATUS state=listening\n"},
		{CmdStyle, "film noir", "OK style=film noir\n"},
		{CmdStyle, "two\nlines", "OK style=two lines\n"},
		{CmdVersion, "", fmt.Sprintf("STATUS proto=%s\n", ProtoVer)},
		{'x', "", "ERR unknown='x'\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.cmd)+tt.arg, func(t *testing.T) {
			got, err := sm.send(tt.cmd, tt.arg)
			if err != nil {
				t.Fatalf("send failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadRequest(t *testing.T) {
	tests := []struct {
		in      string
		cmd     byte
		arg     string
		wantErr bool
	}{
		{in: "s\n", cmd: 's'},
		{in: "ycalm and measured\r\n", cmd: 'y', arg: "calm and measured"},
		{in: "q", cmd: 'q'},
		{in: "\n", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(strconv.Quote(tt.in), func(t *testing.T) {
			cmd, arg, err := ReadRequest(bufio.NewReader(strings.NewReader(tt.in)))
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if cmd != tt.cmd || arg != tt.arg {
				t.Errorf("got (%q, %q), want (%q, %q)", cmd, arg, tt.cmd, tt.arg)
			}
		})
	}
}

func TestPublicAPIWithTempDirs(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	sockPath, err := SockPath()
	if err != nil {
		t.Fatalf("SockPath failed: %v", err)
	}
	if filepath.Base(sockPath) != SockName || filepath.Base(filepath.Dir(sockPath)) != "copresenter" {
		t.Errorf("SockPath = %s", sockPath)
	}

	if err := CheckExistingDaemon(); err != nil {
		t.Errorf("CheckExistingDaemon should succeed when no daemon running: %v", err)
	}
	if err := CreatePidFile(); err != nil {
		t.Fatalf("CreatePidFile failed: %v", err)
	}
	if err := CheckExistingDaemon(); err == nil {
		t.Error("CheckExistingDaemon should see this process")
	}
	if err := RemovePidFile(); err != nil {
		t.Fatalf("RemovePidFile failed: %v", err)
	}

	l, err := Listen()
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer l.Close()
	serve(t, l)

	resp, err := SendCommand(CmdVersion, "")
	if err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if resp != "STATUS proto="+ProtoVer+"\n" {
		t.Errorf("SendCommand = %q", resp)
	}
}
