// Package directory persists the accounts a user has connected so targets
// can be named by ID on the command line.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/blacktop/postfan/internal/logutil"
	"github.com/blacktop/postfan/internal/postfan"
)

type document struct {
	Accounts []postfan.TargetAccount `json:"accounts"`
}

// File is an AccountDirectory stored as one JSON document.
type File struct {
	path string
	mu   sync.Mutex
}

// Open returns a directory backed by path. The file is created on first write.
func Open(path string) *File {
	return &File{path: path}
}

// Path returns the backing file.
func (f *File) Path() string { return f.path }

func (f *File) load() (document, error) {
	var doc document
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read account directory: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse account directory %s: %w", f.path, err)
	}
	return doc, nil
}

func (f *File) save(doc document) error {
	sort.SliceStable(doc.Accounts, func(i, j int) bool {
		if doc.Accounts[i].Platform != doc.Accounts[j].Platform {
			return doc.Accounts[i].Platform < doc.Accounts[j].Platform
		}
		return doc.Accounts[i].AccountID < doc.Accounts[j].AccountID
	})
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode account directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create account directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".accounts-*.json")
	if err != nil {
		return fmt.Errorf("write account directory: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write account directory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write account directory: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("write account directory: %w", err)
	}
	return nil
}

// List returns the accounts of platform, or every account when platform is empty.
func (f *File) List(_ context.Context, platform postfan.Platform) ([]postfan.TargetAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	var out []postfan.TargetAccount
	for _, a := range doc.Accounts {
		if platform == "" || a.Platform == platform {
			out = append(out, a)
		}
	}
	return out, nil
}

// Lookup finds one account.
func (f *File) Lookup(_ context.Context, platform postfan.Platform, accountID string) (postfan.TargetAccount, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return postfan.TargetAccount{}, false, err
	}
	for _, a := range doc.Accounts {
		if a.Platform == platform && a.AccountID == accountID {
			return a, true, nil
		}
	}
	return postfan.TargetAccount{}, false, nil
}

// Add stores account, replacing an existing entry with the same key. It
// reports whether an entry was replaced.
func (f *File) Add(_ context.Context, account postfan.TargetAccount) (bool, error) {
	if !account.Platform.Valid() {
		return false, postfan.ValidationError{Field: "platform", Reason: fmt.Sprintf("unsupported platform %q", account.Platform)}
	}
	if account.AccountID == "" {
		return false, postfan.ValidationError{Field: "accountId", Reason: "required"}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return false, err
	}
	replaced := false
	for i, a := range doc.Accounts {
		if a.Key() == account.Key() {
			doc.Accounts[i] = account
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Accounts = append(doc.Accounts, account)
	}
	if err := f.save(doc); err != nil {
		return false, err
	}
	logutil.Debug("account saved", "account", account.Key().String(), "replaced", replaced)
	return replaced, nil
}

// Remove deletes one account and reports whether it existed.
func (f *File) Remove(_ context.Context, platform postfan.Platform, accountID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.load()
	if err != nil {
		return false, err
	}
	key := postfan.AccountKey{Platform: platform, AccountID: accountID}
	kept := doc.Accounts[:0]
	for _, a := range doc.Accounts {
		if a.Key() != key {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(doc.Accounts) {
		return false, nil
	}
	doc.Accounts = kept
	return true, f.save(doc)
}
