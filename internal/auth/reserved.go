package auth

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/veloroute/veloroute_core/internal/domain"
)

const reservedRefreshInterval = 24 * time.Hour

// ReservedList answers whether a user id is on the reserved list kept
// in a text file, one id per line. The set is read-mostly: lookups take
// the read lock, and a stale set is rebuilt outside any lock and swapped
// in under a brief write lock.
type ReservedList struct {
	path string

	mu       sync.RWMutex
	ids      map[string]struct{}
	loadedAt time.Time
}

// NewReservedList builds a checker over the given file.
func NewReservedList(path string) *ReservedList {
	return &ReservedList{path: path}
}

// NewReservedListFromEnv reads the file path from RESERVED_USERS_FILE.
func NewReservedListFromEnv() *ReservedList {
	path := os.Getenv("RESERVED_USERS_FILE")
	if path == "" {
		path = "./reserved_users.txt"
	}
	return NewReservedList(path)
}

// IsReserved reports whether userID appears on the list, refreshing the
// cached set when it is older than a day.
func (l *ReservedList) IsReserved(ctx context.Context, userID string) (bool, error) {
	l.mu.RLock()
	ids, loadedAt := l.ids, l.loadedAt
	l.mu.RUnlock()

	if ids == nil || time.Since(loadedAt) > reservedRefreshInterval {
		var err error
		ids, err = l.refresh()
		if err != nil {
			return false, err
		}
	}

	_, reserved := ids[userID]
	return reserved, nil
}

// refresh reads the file without holding any lock and swaps the new set
// in. Concurrent refreshes are harmless: last writer wins with an
// equally fresh set.
func (l *ReservedList) refresh() (map[string]struct{}, error) {
	ids, err := loadReservedFile(l.path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.ids = ids
	l.loadedAt = time.Now()
	l.mu.Unlock()
	return ids, nil
}

func loadReservedFile(path string) (map[string]struct{}, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No file means nothing is reserved.
			return map[string]struct{}{}, nil
		}
		return nil, domain.WrapError(domain.KindExternal, "failed to read reserved user list", err)
	}
	defer file.Close()

	ids := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.WrapError(domain.KindExternal, "failed to read reserved user list", err)
	}
	return ids, nil
}
