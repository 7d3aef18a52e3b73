package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/pagefetch/models"
)

// fakeDriver is a scripted Driver. contents[i] is the document served after
// the i-th navigation; the last entry repeats.
type fakeDriver struct {
	mu sync.Mutex

	contents   []string
	navErrs    map[int]error // navigation index -> error
	contentErr error
	currentURL string

	cookies      []models.Cookie
	setCookieErr error

	find func(sel models.Selector, timeout time.Duration) (Element, error)

	userAgent  string
	screenshot []byte

	navigations int
	refreshes   int
	reads       int
	closed      bool

	inUse    atomic.Int32
	overlaps atomic.Int32
	panicOn  string

	// When set, Navigate signals entered and then blocks until release is
	// closed.
	entered chan struct{}
	release chan struct{}
}

func newFakeDriver(contents ...string) *fakeDriver {
	return &fakeDriver{
		contents:   contents,
		navErrs:    map[int]error{},
		currentURL: "http://example.test/",
		userAgent:  "FakeBrowser/1.0",
		screenshot: []byte("png-bytes"),
	}
}

func (f *fakeDriver) enter() func() {
	if f.inUse.Add(1) > 1 {
		f.overlaps.Add(1)
	}
	return func() { f.inUse.Add(-1) }
}

func (f *fakeDriver) Navigate(_ context.Context, url string) error {
	defer f.enter()()
	if f.panicOn == "navigate" {
		panic("driver exploded")
	}
	if f.release != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.navigations
	f.navigations++
	if err := f.navErrs[n]; err != nil {
		return err
	}
	f.currentURL = url
	// Give concurrent callers a chance to overlap if the lock is broken.
	time.Sleep(time.Millisecond)
	return nil
}

func (f *fakeDriver) Content(context.Context) (string, error) {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.contentErr != nil {
		return "", f.contentErr
	}
	if len(f.contents) == 0 {
		return "", nil
	}
	i := f.navigations - 1
	if i < 0 {
		i = 0
	}
	if i >= len(f.contents) {
		i = len(f.contents) - 1
	}
	return f.contents[i], nil
}

func (f *fakeDriver) CurrentURL(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentURL, nil
}

func (f *fakeDriver) Cookies(context.Context) ([]models.Cookie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Cookie(nil), f.cookies...), nil
}

func (f *fakeDriver) SetCookie(_ context.Context, c models.Cookie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setCookieErr != nil {
		return f.setCookieErr
	}
	f.cookies = append(f.cookies, c)
	return nil
}

func (f *fakeDriver) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return nil
}

func (f *fakeDriver) Find(_ context.Context, sel models.Selector, timeout time.Duration) (Element, error) {
	if f.find == nil {
		return nil, ErrElementNotFound
	}
	return f.find(sel, timeout)
}

func (f *fakeDriver) Screenshot(context.Context) ([]byte, error) {
	return f.screenshot, nil
}

func (f *fakeDriver) UserAgent(context.Context) (string, error) {
	return f.userAgent, nil
}

func (f *fakeDriver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeDriver) navigationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.navigations
}

// fakeElement records interactions. A stuck element never becomes
// interactable and only returns once its context is done.
type fakeElement struct {
	clicks   int
	keys     []string
	clickErr error
	keysErr  error
	stuck    bool
}

func (e *fakeElement) Click(ctx context.Context) error {
	if e.stuck {
		<-ctx.Done()
		return ctx.Err()
	}
	if e.clickErr != nil {
		return e.clickErr
	}
	e.clicks++
	return nil
}

func (e *fakeElement) SendKeys(ctx context.Context, text string) error {
	if e.stuck {
		<-ctx.Done()
		return ctx.Err()
	}
	if e.keysErr != nil {
		return e.keysErr
	}
	e.keys = append(e.keys, text)
	return nil
}

// fakeLauncher hands out drivers in order and counts launches.
type fakeLauncher struct {
	mu       sync.Mutex
	drivers  []*fakeDriver
	launches int
	err      error
}

func (l *fakeLauncher) launch(context.Context) (Driver, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	i := l.launches
	l.launches++
	if i >= len(l.drivers) {
		i = len(l.drivers) - 1
	}
	return l.drivers[i], nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

// noSleep records how often the detector would have slept.
type noSleep struct{ calls atomic.Int32 }

func (s *noSleep) sleep(context.Context, time.Duration) { s.calls.Add(1) }

var errConnReset = errors.New("net::ERR_CONNECTION_RESET")

func page(size int) string {
	b := make([]byte, size)
	for i := range b {
		b[i] = 'x'
	}
	return string(b)
}
