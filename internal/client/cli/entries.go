package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/dmitrijs2005/keynest/internal/client/models"
	"github.com/dmitrijs2005/keynest/internal/otp"
	"github.com/dmitrijs2005/keynest/internal/passgen"
	"github.com/dmitrijs2005/keynest/internal/strength"
)

const shortIDLen = 8

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

// List prints the entries matching the optional query as a table.
func (a *App) List(args []string) error {
	entries, err := a.sess.Search(strings.Join(args, " "))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.println("No entries.")
		return nil
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"ID", "Title", "Username", "Tags", "2FA", "Updated"})
	for _, e := range entries {
		t.AppendRow(table.Row{
			shortID(e.ID),
			e.Title,
			e.Username,
			strings.Join(e.Tags, ", "),
			yesNo(e.TOTPSecret != ""),
			formatMillis(e.UpdatedAt),
		})
	}
	a.println(t.Render())
	return nil
}

// Show prints one entry. The password is masked unless -p is given.
func (a *App) Show(args []string) error {
	if len(args) < 1 {
		return usage("show <id> [-p]")
	}
	reveal := len(args) > 1 && args[1] == "-p"

	e, err := a.entry(args[0])
	if err != nil {
		return err
	}

	password := strings.Repeat("*", 8)
	if e.Password == "" {
		password = ""
	} else if reveal {
		password = e.Password
	}

	a.printf("ID:       %s\n", e.ID)
	a.printf("Title:    %s\n", e.Title)
	a.printf("Username: %s\n", e.Username)
	a.printf("Password: %s\n", password)
	if e.Password != "" {
		a.printf("Strength: %s\n", strength.Label(a.sess.Strength(e.Password)))
	}
	if len(e.Tags) > 0 {
		a.printf("Tags:     %s\n", strings.Join(e.Tags, ", "))
	}
	if e.TOTPSecret != "" {
		label := strings.Trim(e.TOTPIssuer+":"+e.TOTPAccount, ":")
		a.printf("2FA:      enabled %s\n", label)
	}
	a.printf("Updated:  %s\n", formatMillis(e.UpdatedAt))
	a.printf("History:  %d versions\n", len(e.History))
	if e.Notes != "" {
		a.println("Notes:")
		a.println(e.Notes)
	}
	return nil
}

func (a *App) entry(prefix string) (models.VaultEntry, error) {
	id, err := a.resolve(prefix)
	if err != nil {
		return models.VaultEntry{}, err
	}
	return a.sess.Entry(id)
}

// Add prompts for a new entry. An empty password prompt generates one.
func (a *App) Add() error {
	if _, err := a.sess.Vault(); err != nil {
		return err
	}

	var edit models.EntryEdit
	var err error

	if edit.Title, err = GetSimpleText(a.reader, "Title", a.out); err != nil {
		return err
	}
	if edit.Title == "" {
		edit.Title = models.DefaultTitle
	}
	if edit.Username, err = GetSimpleText(a.reader, "Username", a.out); err != nil {
		return err
	}
	if edit.Password, err = GetSimpleText(a.reader, "Password (empty to generate)", a.out); err != nil {
		return err
	}
	if edit.Password == "" {
		if edit.Password, err = a.generate(); err != nil {
			return err
		}
		a.println("Generated a new password.")
	}
	if edit.Notes, err = GetMultiline(a.reader, "Notes", a.out); err != nil {
		return err
	}
	tags, err := GetSimpleText(a.reader, "Tags (comma separated)", a.out)
	if err != nil {
		return err
	}
	edit.Tags = models.AddTagsFromInput(nil, tags)

	secret, err := GetSimpleText(a.reader, "TOTP secret (optional)", a.out)
	if err != nil {
		return err
	}
	if edit.TOTPSecret, err = checkSecret(secret); err != nil {
		return err
	}

	e, err := a.sess.AddEntry(edit)
	if err != nil {
		return err
	}
	a.printf("Added %s (%s), password strength: %s.\n",
		e.Title, shortID(e.ID), strength.Label(a.sess.Strength(e.Password)))
	return nil
}

func checkSecret(secret string) (string, error) {
	secret = otp.NormaliseSecret(secret)
	if secret == "" {
		return "", nil
	}
	if err := otp.ValidateSecret(secret); err != nil {
		return "", err
	}
	return secret, nil
}

func (a *App) generate() (string, error) {
	opts := passgen.DefaultOptions()
	opts.Length = a.config.PasswordLength
	return a.sess.GeneratePassword(opts)
}

// Edit prompts for each field. An empty answer keeps the current value and
// "-" clears an optional one.
func (a *App) Edit(args []string) error {
	if len(args) != 1 {
		return usage("edit <id>")
	}
	id, err := a.resolve(args[0])
	if err != nil {
		return err
	}
	e, err := a.sess.Entry(id)
	if err != nil {
		return err
	}

	edit := e.Edit()
	prompt := func(label, current string, optional bool) (string, error) {
		text := fmt.Sprintf("%s [%s]", label, current)
		answer, err := GetSimpleText(a.reader, text, a.out)
		switch {
		case err != nil:
			return "", err
		case answer == "":
			return current, nil
		case answer == "-" && optional:
			return "", nil
		}
		return answer, nil
	}

	if edit.Title, err = prompt("Title", edit.Title, false); err != nil {
		return err
	}
	if edit.Username, err = prompt("Username", edit.Username, true); err != nil {
		return err
	}
	password, err := GetSimpleText(a.reader, "Password [keep], 'gen' to generate", a.out)
	if err != nil {
		return err
	}
	switch password {
	case "":
	case "gen":
		if edit.Password, err = a.generate(); err != nil {
			return err
		}
		a.println("Generated a new password.")
	default:
		edit.Password = password
	}
	if edit.Notes, err = prompt("Notes", edit.Notes, true); err != nil {
		return err
	}
	secret, err := prompt("TOTP secret", maskSecret(edit.TOTPSecret), true)
	if err != nil {
		return err
	}
	if secret != maskSecret(edit.TOTPSecret) {
		if edit.TOTPSecret, err = checkSecret(secret); err != nil {
			return err
		}
	}

	updated, err := a.sess.UpdateEntry(id, edit)
	if err != nil {
		return err
	}
	if updated.UpdatedAt == e.UpdatedAt {
		a.println("No changes.")
		return nil
	}
	a.printf("Updated %s.\n", updated.Title)
	return nil
}

func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "set"
}

// Delete removes an entry after confirmation.
func (a *App) Delete(args []string) error {
	if len(args) != 1 {
		return usage("delete <id>")
	}
	e, err := a.entry(args[0])
	if err != nil {
		return err
	}
	if !Confirm(a.reader, fmt.Sprintf("Delete %q?", e.Title), a.out) {
		a.println("Cancelled.")
		return nil
	}
	if err := a.sess.DeleteEntry(e.ID); err != nil {
		return err
	}
	a.printf("Deleted %s.\n", e.Title)
	return nil
}

// History lists an entry's prior versions, most recent first.
func (a *App) History(args []string) error {
	if len(args) != 1 {
		return usage("history <id>")
	}
	e, err := a.entry(args[0])
	if err != nil {
		return err
	}
	if len(e.History) == 0 {
		a.println("No history.")
		return nil
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Title", "Username", "Tags", "Saved"})
	for i, h := range e.History {
		t.AppendRow(table.Row{i, h.Title, h.Username, strings.Join(h.Tags, ", "), formatMillis(h.UpdatedAt)})
	}
	a.println(t.Render())
	return nil
}

// Restore makes history version n current.
func (a *App) Restore(args []string) error {
	if len(args) != 2 {
		return usage("restore <id> <n>")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return usage("restore <id> <n>")
	}
	id, err := a.resolve(args[0])
	if err != nil {
		return err
	}
	e, err := a.sess.RestoreVersion(id, n)
	if err != nil {
		return err
	}
	a.printf("Restored version %d of %s.\n", n, e.Title)
	return nil
}

// Tag adds comma or space separated tags to an entry.
func (a *App) Tag(args []string) error {
	if len(args) < 2 {
		return usage("tag <id> <tag>[,<tag>...]")
	}
	id, err := a.resolve(args[0])
	if err != nil {
		return err
	}
	e, err := a.sess.EditEntry(id, func(edit *models.EntryEdit) {
		edit.Tags = models.AddTagsFromInput(edit.Tags, strings.Join(args[1:], ","))
	})
	if err != nil {
		return err
	}
	a.printf("Tags: %s\n", strings.Join(e.Tags, ", "))
	return nil
}

// Untag removes one tag from an entry.
func (a *App) Untag(args []string) error {
	if len(args) != 2 {
		return usage("untag <id> <tag>")
	}
	id, err := a.resolve(args[0])
	if err != nil {
		return err
	}
	e, err := a.sess.EditEntry(id, func(edit *models.EntryEdit) {
		edit.Tags = models.RemoveTag(edit.Tags, args[1])
	})
	if err != nil {
		return err
	}
	a.printf("Tags: %s\n", strings.Join(e.Tags, ", "))
	return nil
}
