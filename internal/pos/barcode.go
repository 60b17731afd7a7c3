package pos

import (
	"strings"
	"sync"
	"time"
	"unicode"
)

// ── Barcode input ─────────────────────────────────────────────────────────────
// A keyboard-wedge scanner types the code followed by Enter. Keystrokes are
// buffered until Enter flushes them; a pause longer than the timeout between
// keystrokes discards the buffer (a human typing, not a scanner).

const (
	KeyEnter = "Enter"

	DefaultAmbientTimeout = 600 * time.Millisecond
	DefaultManualTimeout  = 250 * time.Millisecond
	DefaultMinCodeLength  = 3
)

// Timer is the subset of *time.Timer the decoder needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once adapted.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Decoder is one buffering state machine: Idle while the buffer is empty,
// Accumulating otherwise.
type Decoder struct {
	mu      sync.Mutex
	buf     strings.Builder
	timeout time.Duration
	minLen  int
	after   AfterFunc
	timer   Timer
	gen     uint64
}

func NewDecoder(timeout time.Duration, minLen int, after AfterFunc) *Decoder {
	if after == nil {
		after = realAfterFunc
	}
	if minLen <= 0 {
		minLen = DefaultMinCodeLength
	}
	return &Decoder{timeout: timeout, minLen: minLen, after: after}
}

// Key feeds one keystroke. It returns the decoded code and true when Enter
// flushed a buffer of at least the minimum length.
func (d *Decoder) Key(key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if key == KeyEnter {
		return d.flushLocked()
	}
	r, ok := printable(key)
	if !ok {
		return "", false
	}
	d.buf.WriteRune(r)
	d.rescheduleLocked()
	return "", false
}

// Buffered returns the pending characters.
func (d *Decoder) Buffered() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.String()
}

// Reset discards the buffer and cancels the pending timeout.
func (d *Decoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked()
}

func (d *Decoder) rescheduleLocked() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.after(d.timeout, func() { d.expire(gen) })
}

// expire discards the buffer unless a newer keystroke rescheduled the timer.
func (d *Decoder) expire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return
	}
	d.buf.Reset()
	d.timer = nil
}

func (d *Decoder) flushLocked() (string, bool) {
	code := strings.TrimSpace(d.buf.String())
	d.clearLocked()
	if len([]rune(code)) < d.minLen {
		return "", false
	}
	return code, true
}

func (d *Decoder) clearLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.buf.Reset()
}

func printable(key string) (rune, bool) {
	rs := []rune(key)
	if len(rs) != 1 || !unicode.IsPrint(rs[0]) {
		return 0, false
	}
	return rs[0], true
}

// ── Scanner ───────────────────────────────────────────────────────────────────

// KeySource tells which input channel produced a keystroke.
type KeySource string

const (
	SourceAmbient KeySource = "ambiente"
	SourceManual  KeySource = "manual"
)

// KeyEvent is one keystroke forwarded by the front end.
type KeyEvent struct {
	Key              string
	FocusOnTextInput bool
	Source           KeySource
}

type ScannerConfig struct {
	AmbientTimeout time.Duration
	ManualTimeout  time.Duration
	MinCodeLength  int
	AfterFunc      AfterFunc
}

func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		AmbientTimeout: DefaultAmbientTimeout,
		ManualTimeout:  DefaultManualTimeout,
		MinCodeLength:  DefaultMinCodeLength,
	}
}

// Scanner routes keystrokes to exactly one active decoder: the always-on
// ambient listener, or the manual scan mode while it is enabled.
type Scanner struct {
	mu      sync.Mutex
	manual  bool
	ambient *Decoder
	manualD *Decoder
}

func NewScanner(cfg ScannerConfig) *Scanner {
	if cfg.AmbientTimeout <= 0 {
		cfg.AmbientTimeout = DefaultAmbientTimeout
	}
	if cfg.ManualTimeout <= 0 {
		cfg.ManualTimeout = DefaultManualTimeout
	}
	return &Scanner{
		ambient: NewDecoder(cfg.AmbientTimeout, cfg.MinCodeLength, cfg.AfterFunc),
		manualD: NewDecoder(cfg.ManualTimeout, cfg.MinCodeLength, cfg.AfterFunc),
	}
}

// SetManual switches the active channel. Both buffers are discarded.
func (s *Scanner) SetManual(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manual = on
	s.ambient.Reset()
	s.manualD.Reset()
}

func (s *Scanner) Manual() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manual
}

// HandleKey feeds ev to the active decoder and returns a decoded code, if any.
func (s *Scanner) HandleKey(ev KeyEvent) (string, bool) {
	s.mu.Lock()
	manual := s.manual
	s.mu.Unlock()

	if manual {
		if ev.Source != SourceManual {
			return "", false
		}
		return s.manualD.Key(ev.Key)
	}
	if ev.Source == SourceManual {
		return "", false
	}
	if ev.FocusOnTextInput && ev.Key != KeyEnter {
		return "", false
	}
	return s.ambient.Key(ev.Key)
}
