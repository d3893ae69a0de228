package provider

import (
	"context"
	"fmt"
	"sync"
)

// Fake is a scripted in-memory Client used in tests and for local
// development without provider credentials. Pages are served in order, one
// per SyncPage call; HasMore is derived from the remaining script.
type Fake struct {
	mu sync.Mutex

	LinkToken string
	Exchange  ExchangeResult
	Pages     []SyncPage
	Balances  []Balance

	// Err, when set, is returned by every call.
	Err error

	pageIdx     int
	SyncCalls   int
	SeenCursors []*string
}

func (f *Fake) CreateLinkSession(_ context.Context, _ uint) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	if f.LinkToken == "" {
		return "link-sandbox-token", nil
	}
	return f.LinkToken, nil
}

func (f *Fake) ExchangeSession(_ context.Context, _ string) (ExchangeResult, error) {
	if f.Err != nil {
		return ExchangeResult{}, f.Err
	}
	return f.Exchange, nil
}

func (f *Fake) SyncPage(_ context.Context, _ string, cursor *string) (SyncPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return SyncPage{}, f.Err
	}

	f.SyncCalls++
	// Record a snapshot of the cursor value; the caller may reuse the
	// pointed-to variable on later pages.
	if cursor != nil {
		c := *cursor
		f.SeenCursors = append(f.SeenCursors, &c)
	} else {
		f.SeenCursors = append(f.SeenCursors, nil)
	}

	if f.pageIdx >= len(f.Pages) {
		return SyncPage{}, fmt.Errorf("fake provider: no more scripted pages")
	}
	page := f.Pages[f.pageIdx]
	f.pageIdx++
	page.HasMore = f.pageIdx < len(f.Pages)
	return page, nil
}

func (f *Fake) GetBalances(_ context.Context, _ string) ([]Balance, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Balances, nil
}

// Reset rewinds the page script so the same fake can serve another sync.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageIdx = 0
}
