package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

const defaultLogFile = "./preppertrack.log"

// Service owns the active sinks. Apply rebuilds them; every Logger from
// Logger() or New picks up the new root on its next write.
type Service struct {
	mu   sync.Mutex // serializes Apply and Close
	file *os.File
	root atomic.Pointer[zerolog.Logger]
}

// New builds a Service from cfg and returns it with its root Logger.
func New(cfg Config) (*Service, Logger) {
	s := &Service{}
	s.Apply(cfg)
	return s, s.Logger()
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

func (s *Service) current() zerolog.Logger {
	if zl := s.root.Load(); zl != nil {
		return *zl
	}
	return zerolog.Nop()
}

// Apply replaces sinks and level. A file that cannot be opened is reported on
// stderr and skipped; with no usable sink the console is used.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sinks, f := openSinks(cfg)
	old := s.file
	s.file = f
	zl := newZero(zerolog.MultiLevelWriter(sinks...), cfg.Level)
	s.root.Store(&zl)
	if old != nil {
		_ = old.Close()
	}
}

func openSinks(cfg Config) ([]io.Writer, *os.File) {
	var (
		sinks []io.Writer
		file  *os.File
	)
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = defaultLogFile
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logx: open %s: %v\n", path, err)
		} else {
			file = f
			sinks = append(sinks, zerolog.SyncWriter(f))
		}
	}
	if cfg.Console || len(sinks) == 0 {
		sinks = append(sinks, console(Stderr()))
	}
	return sinks, file
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// console renders entries for humans, printing the caller as is.
func console(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:          w,
		TimeFormat:   timeFormat,
		FormatCaller: func(i any) string { s, _ := i.(string); return s },
	}
}

// Stderr is where console logs go, keeping stdout free for command output.
func Stderr() io.Writer { return os.Stderr }
