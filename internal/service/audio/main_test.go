package audio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"
)

// Sound contents understood by the stand-in player.
const (
	// fakeCrash plays briefly and then exits with an error.
	fakeCrash = "crash"
	// fakeHang never opens its IPC socket.
	fakeHang = "hang"
	// fakeFail exits at once with an error.
	fakeFail = "fail"
)

// TestMain lets the test binary stand in for mpv: when started with an IPC
// socket flag it serves the socket instead of running tests.
func TestMain(m *testing.M) {
	if socket, location, ok := fakePlayerArgs(os.Args[1:]); ok {
		os.Exit(runFakePlayer(socket, location))
	}

	os.Exit(m.Run())
}

func fakePlayerArgs(args []string) (socket, location string, ok bool) {
	for _, arg := range args {
		if value, found := strings.CutPrefix(arg, "--input-ipc-server="); found {
			socket, ok = value, true
		}
	}

	if !ok || len(args) == 0 {
		return "", "", false
	}

	return socket, args[len(args)-1], true
}

// runFakePlayer answers mpv IPC commands on socket and logs set_property calls
// next to it. The behavior is picked by the contents of the sound file.
func runFakePlayer(socket, location string) int {
	mode := location
	if data, err := os.ReadFile(location); err == nil {
		mode = strings.TrimSpace(string(data))
	}

	switch mode {
	case fakeFail:
		return 2
	case fakeHang:
		time.Sleep(time.Minute)

		return 0
	}

	l, err := net.Listen("unix", socket)
	if err != nil {
		return 1
	}

	if mode == fakeCrash {
		go func() {
			time.Sleep(500 * time.Millisecond)
			os.Exit(3)
		}()
	}

	for {
		conn, err := l.Accept()
		if err != nil {
			return 1
		}

		go serveFakeIPC(conn, socket+".log")
	}
}

func serveFakeIPC(conn net.Conn, logPath string) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var request struct {
			Command   []any `json:"command"`
			RequestID int64 `json:"request_id"`
		}

		if err := json.Unmarshal(scanner.Bytes(), &request); err != nil {
			continue
		}

		if len(request.Command) == 3 && request.Command[0] == "set_property" {
			if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600); err == nil {
				_, _ = fmt.Fprintf(f, "%v=%v\n", request.Command[1], request.Command[2])
				_ = f.Close()
			}
		}

		_, _ = fmt.Fprintf(conn, "{\"error\":\"success\",\"data\":null,\"request_id\":%d}\n", request.RequestID)
	}
}
