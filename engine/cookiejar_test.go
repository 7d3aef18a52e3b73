package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pagefetch/models"
)

func TestSaveCookieJar_ConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "cookies.dat")

	many := newFakeDriver()
	for i := 0; i < 200; i++ {
		many.cookies = append(many.cookies, models.Cookie{Name: fmt.Sprintf("c%d", i), Value: "v", Domain: "example.test"})
	}
	one := newFakeDriver()
	one.cookies = []models.Cookie{{Name: "only", Value: "v", Domain: "example.test"}}

	var (
		wg   sync.WaitGroup
		errs = make(chan error, 200)
	)
	for _, drv := range []*fakeDriver{many, one} {
		wg.Add(1)
		go func(drv *fakeDriver) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if err := saveCookieJar(context.Background(), drv, jar); err != nil {
					errs <- err
				}
			}
		}(drv)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("save failed: %v", err)
	}

	// Whichever writer finished last, the jar holds one complete set.
	restored := newFakeDriver()
	n, err := loadCookieJar(context.Background(), restored, jar)
	require.NoError(t, err)
	assert.Contains(t, []int{1, 200}, n)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}
