// Package uci is a client for chess engines speaking the Universal Chess
// Interface. The trainer uses it to reach its evaluation oracle.
package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrClosed is returned once the engine's output has ended.
	ErrClosed = errors.New("uci: engine closed")

	// ErrNoScore is returned when a search ends without reporting a score.
	ErrNoScore = errors.New("uci: search reported no score")

	// ErrQuitTimeout is returned by Close when the engine's output did not end
	// in time and there is no process to kill.
	ErrQuitTimeout = errors.New("uci: engine did not quit")
)

// quitTimeout bounds how long Close waits for the engine to exit.
const quitTimeout = 5 * time.Second

// Result is the outcome of one search.
type Result struct {
	BestMove string
	Ponder   string

	// Info is the last info line that carried a score.
	Info Info
}

// Client drives one engine. Searches are serialized: at most one is in
// flight at any time.
type Client struct {
	w     io.Writer
	lines chan string
	done  chan struct{}
	eof   chan struct{}
	group *errgroup.Group
	cmd   *exec.Cmd

	// Name is the engine's "id name".
	Name    string
	Options map[string]Option

	mu sync.Mutex
	// searching is set between a "go" and the matching "bestmove".
	searching bool

	closed atomic.Bool
	logger *log.Logger

	quitTimeout time.Duration
}

// NewClient wraps an engine reachable through r (its output) and w (its
// input). If w is an io.Closer it is closed by Close.
func NewClient(r io.Reader, w io.Writer) *Client {
	c := &Client{
		w:       w,
		lines:   make(chan string, 64),
		done:    make(chan struct{}),
		eof:     make(chan struct{}),
		group:   &errgroup.Group{},
		Options: make(map[string]Option),
		logger:  log.Default(),

		quitTimeout: quitTimeout,
	}
	c.group.Go(func() error {
		return c.readLoop(r)
	})
	return c
}

// Start launches the engine binary at path and performs the handshake.
func Start(ctx context.Context, path string, args ...string) (*Client, error) {
	cmd := exec.Command(path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine %s: %w", path, err)
	}

	c := NewClient(stdout, stdin)
	c.cmd = cmd
	// Wait closes the pipes, so it must not run before reading has ended.
	c.group.Go(func() error {
		<-c.eof
		return cmd.Wait()
	})
	if err := c.Handshake(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// SetLogger replaces the logger used for engine messages.
func (c *Client) SetLogger(l *log.Logger) {
	c.logger = l
}

func (c *Client) readLoop(r io.Reader) error {
	defer close(c.eof)
	defer close(c.lines)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case c.lines <- line:
		case <-c.done:
			return nil
		}
	}
	return scanner.Err()
}

func (c *Client) send(format string, args ...any) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if _, err := fmt.Fprintf(c.w, format+"\n", args...); err != nil {
		return fmt.Errorf("failed to write to engine: %w", err)
	}
	return nil
}

func (c *Client) readLine(ctx context.Context) (string, error) {
	select {
	case line, ok := <-c.lines:
		if !ok {
			return "", ErrClosed
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// readUntil reads lines until one starts with token, passing the others to fn.
func (c *Client) readUntil(ctx context.Context, token string, fn func(string)) (string, error) {
	for {
		line, err := c.readLine(ctx)
		if err != nil {
			return "", err
		}
		if line == token || strings.HasPrefix(line, token+" ") {
			return line, nil
		}
		if fn != nil {
			fn(line)
		}
	}
}

// Handshake sends "uci", records the engine's id and options, and waits for
// the engine to be ready.
func (c *Client) Handshake(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send("uci"); err != nil {
		return err
	}
	_, err := c.readUntil(ctx, "uciok", func(line string) {
		parts := strings.Fields(line)
		switch {
		case len(parts) > 2 && parts[0] == "id" && parts[1] == "name":
			c.Name = strings.Join(parts[2:], " ")
		case len(parts) > 1 && parts[0] == "option":
			opt := parseOption(parts[1:])
			c.Options[strings.ToLower(opt.Name)] = opt
		}
	})
	if err != nil {
		return fmt.Errorf("uci handshake: %w", err)
	}
	if err := c.ready(ctx); err != nil {
		return err
	}
	c.logger.Printf("uci: engine %q ready, %d options", c.Name, len(c.Options))
	return nil
}

func (c *Client) ready(ctx context.Context) error {
	if err := c.send("isready"); err != nil {
		return err
	}
	if _, err := c.readUntil(ctx, "readyok", nil); err != nil {
		return fmt.Errorf("uci isready: %w", err)
	}
	return nil
}

// SetOption sets an engine option and waits for the engine to apply it.
func (c *Client) SetOption(ctx context.Context, name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.Options) > 0 {
		if _, ok := c.Options[strings.ToLower(name)]; !ok {
			c.logger.Printf("uci: engine %q does not advertise option %q", c.Name, name)
		}
	}
	if err := c.send("setoption name %s value %s", name, value); err != nil {
		return err
	}
	return c.ready(ctx)
}

// NewGame tells the engine that following searches are unrelated to earlier
// ones.
func (c *Client) NewGame(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.finishSearch(ctx); err != nil {
		return err
	}
	if err := c.send("ucinewgame"); err != nil {
		return err
	}
	return c.ready(ctx)
}

// finishSearch stops a search abandoned by an earlier cancelled call and
// discards its output up to its bestmove.
func (c *Client) finishSearch(ctx context.Context) error {
	if !c.searching {
		return nil
	}
	if err := c.send("stop"); err != nil {
		return err
	}
	if _, err := c.readUntil(ctx, "bestmove", nil); err != nil {
		return fmt.Errorf("uci stop: %w", err)
	}
	c.searching = false
	return nil
}

// Search analyses the position given by fen and returns the engine's final
// score and best move. If ctx ends first the engine is told to stop and the
// abandoned search is drained by the next call.
func (c *Client) Search(ctx context.Context, fen string, opts GoOptions) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.finishSearch(ctx); err != nil {
		return Result{}, err
	}
	if err := c.send("position fen %s", fen); err != nil {
		return Result{}, err
	}
	if err := c.send("go %s", opts); err != nil {
		return Result{}, err
	}
	c.searching = true

	var res Result
	var scored bool
	line, err := c.readUntil(ctx, "bestmove", func(line string) {
		if info, ok := ParseInfo(line); ok && info.HasScore {
			res.Info = info
			scored = true
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			c.send("stop")
		}
		return Result{}, err
	}
	c.searching = false

	parts := strings.Fields(line)
	if len(parts) > 1 {
		res.BestMove = parts[1]
	}
	if len(parts) > 3 && parts[2] == "ponder" {
		res.Ponder = parts[3]
	}
	if !scored {
		return res, fmt.Errorf("%w: position %s", ErrNoScore, fen)
	}
	return res, nil
}

// Close asks the engine to quit and waits for its output to end. A process
// that does not exit within a few seconds is killed.
func (c *Client) Close() error {
	if c.closed.Load() {
		return nil
	}
	c.send("quit")
	c.closed.Store(true)
	close(c.done)
	if wc, ok := c.w.(io.Closer); ok {
		wc.Close()
	}

	waited := make(chan error, 1)
	go func() { waited <- c.group.Wait() }()

	select {
	case err := <-waited:
		return err
	case <-time.After(c.quitTimeout):
		if c.cmd == nil || c.cmd.Process == nil {
			return ErrQuitTimeout
		}
		c.cmd.Process.Kill()
		return <-waited
	}
}
