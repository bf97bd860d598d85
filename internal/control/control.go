package control

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/yok-tottii/speak/internal/logger"
)

// connTimeout bounds how long one client may take to deliver its command
// and read the response. Connections are handled one at a time, so a hung
// client must not wedge the daemon.
const connTimeout = 5 * time.Second

// Handler processes one command line and returns the response text
type Handler func(cmd string) string

// SocketPath returns the control socket location
func SocketPath() string {
	if runtime := os.Getenv("XDG_RUNTIME_DIR"); runtime != "" {
		return filepath.Join(runtime, "speak.sock")
	}
	return fmt.Sprintf("/tmp/speak-%d.sock", os.Getuid())
}

// Server answers line-oriented commands on a unix socket. Connections are
// accepted and handled sequentially; every command the handler sees is
// complete and already stripped of its trailing newline.
type Server struct {
	path     string
	handler  Handler
	log      *logger.Logger
	listener net.Listener
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewServer creates a control server on the given socket path
func NewServer(path string, handler Handler, log *logger.Logger) *Server {
	return &Server{
		path:    path,
		handler: handler,
		log:     log,
	}
}

// Start binds the socket, replacing any stale one left by a previous
// process, and begins accepting connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("control server already running")
	}

	os.Remove(s.path)

	listener, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.path, err)
	}

	s.listener = listener
	s.running = true

	s.wg.Add(1)
	go s.acceptLoop()

	s.log.Info("control socket listening", logger.String("path", s.path))
	return nil
}

// Stop closes the listener and waits for the accept loop to exit before
// removing the socket file.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	s.listener.Close()
	s.wg.Wait()
	os.Remove(s.path)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Listener closed by Stop
			return
		}
		s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(connTimeout))

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil || n == 0 {
		return
	}

	cmd := strings.TrimRight(string(buf[:n]), "\r\n")
	s.log.Debug("control command", logger.String("cmd", cmd))

	if response := s.handler(cmd); response != "" {
		if _, err := conn.Write([]byte(response)); err != nil {
			s.log.Warn("control response write failed", logger.Error(err))
		}
	}
}

// Send delivers one command to a running daemon at the given socket path
// and returns its full response.
func Send(path, cmd string) (string, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return "", fmt.Errorf("cannot connect to %s (is speak running?): %w", path, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(connTimeout))

	if _, err := conn.Write([]byte(cmd)); err != nil {
		return "", fmt.Errorf("failed to send command: %w", err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		uc.CloseWrite()
	}

	data, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	return string(data), nil
}
