// Package models defines the decrypted vault document: entries, their
// revision history and tags.
package models

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/keynest/internal/common"
)

// VaultVersion is the only document version written by this package.
const VaultVersion = common.VaultSchemaVersion

// DefaultTitle is the title given to freshly created entries.
const DefaultTitle = "New entry"

var (
	ErrEmptyTitle    = errors.New("title must not be empty")
	ErrEntryNotFound = errors.New("entry not found")
	ErrHistoryIndex  = errors.New("history index out of range")
)

// VaultEntry is one stored credential.
type VaultEntry struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	Notes    string   `json:"notes,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	TOTPSecret  string `json:"totpSecret,omitempty"`
	TOTPIssuer  string `json:"totpIssuer,omitempty"`
	TOTPAccount string `json:"totpAccount,omitempty"`

	// History holds prior revisions, most recent first.
	History []VaultEntryHistoryItem `json:"history,omitempty"`

	// UpdatedAt is epoch milliseconds of the last modification.
	UpdatedAt int64 `json:"updatedAt"`
}

// VaultEntryHistoryItem is a snapshot of an entry's content.
type VaultEntryHistoryItem struct {
	Title      string   `json:"title"`
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	Notes      string   `json:"notes,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	TOTPSecret string   `json:"totpSecret,omitempty"`
	UpdatedAt  int64    `json:"updatedAt"`
}

// VaultData is the whole decrypted vault.
type VaultData struct {
	Version int          `json:"version"`
	Entries []VaultEntry `json:"entries"`
}

// EntryEdit is the user-editable content of an entry.
type EntryEdit struct {
	Title       string
	Username    string
	Password    string
	Notes       string
	Tags        []string
	TOTPSecret  string
	TOTPIssuer  string
	TOTPAccount string
}

func NewVaultData() *VaultData {
	return &VaultData{Version: VaultVersion, Entries: []VaultEntry{}}
}

// NewEntry returns an empty entry with a fresh id.
func NewEntry(now time.Time) VaultEntry {
	return VaultEntry{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		UpdatedAt: now.UnixMilli(),
	}
}

// NewEntryFrom returns a new entry with the content of edit and no
// history. The same title and TOTP rules as Revise apply.
func NewEntryFrom(edit EntryEdit, now time.Time) (VaultEntry, error) {
	e := NewEntry(now)
	if _, err := e.Revise(edit, now); err != nil {
		return VaultEntry{}, err
	}
	e.History = nil
	e.UpdatedAt = now.UnixMilli()
	return e, nil
}

// NextUpdatedAt returns a modification timestamp for now that is strictly
// greater than prev.
func NextUpdatedAt(prev int64, now time.Time) int64 {
	ms := now.UnixMilli()
	if ms <= prev {
		return prev + 1
	}
	return ms
}

// Edit returns the entry's current content, ready to be modified and passed
// to Revise.
func (e *VaultEntry) Edit() EntryEdit {
	return EntryEdit{
		Title:       e.Title,
		Username:    e.Username,
		Password:    e.Password,
		Notes:       e.Notes,
		Tags:        slices.Clone(e.Tags),
		TOTPSecret:  e.TOTPSecret,
		TOTPIssuer:  e.TOTPIssuer,
		TOTPAccount: e.TOTPAccount,
	}
}

// Revise applies edit as a new revision. The title is trimmed and must be
// non-empty, tags are normalised and de-duplicated, and a blank TOTP secret
// is stored as absent. When the content
// changes, the previous content is pushed to the front of History and
// UpdatedAt advances. It reports whether anything changed.
func (e *VaultEntry) Revise(edit EntryEdit, now time.Time) (bool, error) {
	edit.Title = strings.TrimSpace(edit.Title)
	if edit.Title == "" {
		return false, ErrEmptyTitle
	}
	edit.Tags = NormaliseTags(edit.Tags)
	edit.TOTPSecret = strings.TrimSpace(edit.TOTPSecret)
	if edit.TOTPSecret == "" {
		edit.TOTPIssuer = ""
		edit.TOTPAccount = ""
	}

	if e.sameContent(edit) {
		return false, nil
	}

	e.History = append([]VaultEntryHistoryItem{e.snapshot()}, e.History...)

	e.Title = edit.Title
	e.Username = edit.Username
	e.Password = edit.Password
	e.Notes = edit.Notes
	e.Tags = slices.Clone(edit.Tags)
	e.TOTPSecret = edit.TOTPSecret
	e.TOTPIssuer = edit.TOTPIssuer
	e.TOTPAccount = edit.TOTPAccount
	e.UpdatedAt = NextUpdatedAt(e.UpdatedAt, now)
	return true, nil
}

// RestoreVersion makes History[n] the current content, recording the
// content it replaces as the newest history item.
func (e *VaultEntry) RestoreVersion(n int, now time.Time) error {
	if n < 0 || n >= len(e.History) {
		return ErrHistoryIndex
	}
	item := e.History[n]

	edit := e.Edit()
	edit.Title = item.Title
	edit.Username = item.Username
	edit.Password = item.Password
	edit.Notes = item.Notes
	edit.Tags = slices.Clone(item.Tags)
	edit.TOTPSecret = item.TOTPSecret

	_, err := e.Revise(edit, now)
	return err
}

func (e *VaultEntry) snapshot() VaultEntryHistoryItem {
	return VaultEntryHistoryItem{
		Title:      e.Title,
		Username:   e.Username,
		Password:   e.Password,
		Notes:      e.Notes,
		Tags:       slices.Clone(e.Tags),
		TOTPSecret: e.TOTPSecret,
		UpdatedAt:  e.UpdatedAt,
	}
}

func (e *VaultEntry) sameContent(edit EntryEdit) bool {
	return e.Title == edit.Title &&
		e.Username == edit.Username &&
		e.Password == edit.Password &&
		e.Notes == edit.Notes &&
		slices.Equal(e.Tags, edit.Tags) &&
		e.TOTPSecret == edit.TOTPSecret &&
		e.TOTPIssuer == edit.TOTPIssuer &&
		e.TOTPAccount == edit.TOTPAccount
}

// Clone returns a deep copy of the entry.
func (e VaultEntry) Clone() VaultEntry {
	out := e
	out.Tags = slices.Clone(e.Tags)
	if e.History != nil {
		out.History = make([]VaultEntryHistoryItem, len(e.History))
		for i, h := range e.History {
			h.Tags = slices.Clone(h.Tags)
			out.History[i] = h
		}
	}
	return out
}

// Find returns a pointer to the entry with id, valid until the next
// structural change of v.
func (v *VaultData) Find(id string) (*VaultEntry, bool) {
	for i := range v.Entries {
		if v.Entries[i].ID == id {
			return &v.Entries[i], true
		}
	}
	return nil, false
}

// Upsert replaces the entry with the same id, or prepends entry if the id
// is new.
func (v *VaultData) Upsert(entry VaultEntry) {
	if cur, ok := v.Find(entry.ID); ok {
		*cur = entry
		return
	}
	v.Entries = append([]VaultEntry{entry}, v.Entries...)
}

func (v *VaultData) Delete(id string) error {
	for i := range v.Entries {
		if v.Entries[i].ID == id {
			v.Entries = append(v.Entries[:i], v.Entries[i+1:]...)
			return nil
		}
	}
	return ErrEntryNotFound
}

// Search returns copies of entries whose title, username or notes contain
// query, case-insensitively. A blank query matches everything.
func (v *VaultData) Search(query string) []VaultEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]VaultEntry, 0, len(v.Entries))
	for _, e := range v.Entries {
		if q == "" ||
			strings.Contains(strings.ToLower(e.Title), q) ||
			strings.Contains(strings.ToLower(e.Username), q) ||
			strings.Contains(strings.ToLower(e.Notes), q) {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Clone returns a deep copy of v. A nil vault clones to nil.
func (v *VaultData) Clone() *VaultData {
	if v == nil {
		return nil
	}
	out := &VaultData{Version: v.Version, Entries: make([]VaultEntry, len(v.Entries))}
	for i, e := range v.Entries {
		out.Entries[i] = e.Clone()
	}
	return out
}

// Wipe drops every reference to entry content held by v. Go strings are
// immutable, so the underlying bytes are left to the garbage collector.
func (v *VaultData) Wipe() {
	if v == nil {
		return
	}
	for i := range v.Entries {
		v.Entries[i] = VaultEntry{}
	}
	v.Entries = nil
}
