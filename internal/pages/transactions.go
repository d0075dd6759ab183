package pages

import (
	"context"
	"fmt"
	"strconv"

	"github.com/roach88/rwaverify/internal/money"
)

// Tab is a transaction feed tab.
type Tab string

const (
	TabEveryone Tab = "public"
	TabFriends  Tab = "contacts"
	TabMine     Tab = "personal"
)

func (t Tab) selector() (string, error) {
	switch t {
	case TabEveryone:
		return TabPublic, nil
	case TabFriends:
		return TabContacts, nil
	case TabMine:
		return TabPersonal, nil
	default:
		return "", fmt.Errorf("unknown transaction tab %q", t)
	}
}

// Row is a transaction as one viewer sees it. Amount is signed from the
// viewer's side: negative when the viewer pays.
type Row struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Action   string `json:"action"`
	Amount   int64  `json:"amount"`
	Note     string `json:"note"`
	Likes    int    `json:"likes"`
	Comments int    `json:"comments"`
}

// readRow reads the first transaction matched by the shared row
// selectors on the current screen.
func readRow(ctx context.Context, ui uiReader) (Row, error) {
	var row Row
	var err error
	if row.Sender, err = ui.ReadText(ctx, TransactionSender); err != nil {
		return row, err
	}
	if row.Receiver, err = ui.ReadText(ctx, TransactionReceiver); err != nil {
		return row, err
	}
	if row.Action, err = ui.ReadText(ctx, TransactionAction); err != nil {
		return row, err
	}
	if row.Note, err = ui.ReadText(ctx, TransactionDescription); err != nil {
		return row, err
	}
	if row.Amount, err = ui.ReadAmount(ctx, TransactionAmount); err != nil {
		return row, err
	}
	if row.Likes, err = readCount(ctx, ui, TransactionLikeCount); err != nil {
		return row, err
	}
	if row.Comments, err = readCount(ctx, ui, TransactionCommentCount); err != nil {
		return row, err
	}
	return row, nil
}

// uiReader is the part of browser.UI the row helpers need.
type uiReader interface {
	ReadText(ctx context.Context, sel string) (string, error)
	ReadAmount(ctx context.Context, sel string) (int64, error)
	ExpectText(ctx context.Context, sel, want string) error
}

func readCount(ctx context.Context, ui uiReader, sel string) (int, error) {
	text, err := ui.ReadText(ctx, sel)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("read count %s: %q is not a number", sel, text)
	}
	return n, nil
}

// verifyRow waits until the first row matches want field by field.
func verifyRow(ctx context.Context, ui uiReader, want Row) error {
	checks := []struct{ sel, text string }{
		{TransactionSender, want.Sender},
		{TransactionReceiver, want.Receiver},
		{TransactionAction, want.Action},
		{TransactionDescription, want.Note},
		{TransactionAmount, money.FormatSigned(want.Amount)},
		{TransactionLikeCount, strconv.Itoa(want.Likes)},
		{TransactionCommentCount, strconv.Itoa(want.Comments)},
	}
	for _, c := range checks {
		if err := ui.ExpectText(ctx, c.sel, c.text); err != nil {
			return err
		}
	}
	return nil
}

// TransactionList drives the transaction feed.
type TransactionList struct {
	driver
}

// NewTransactionList binds a feed driver.
func NewTransactionList(b Binding) *TransactionList {
	return &TransactionList{driver: newDriver(b)}
}

// Open selects a tab and waits until it is marked selected.
func (l *TransactionList) Open(ctx context.Context, tab Tab) error {
	sel, err := tab.selector()
	if err != nil {
		return err
	}
	if err := l.ui.Click(ctx, sel); err != nil {
		return err
	}
	return l.ui.ExpectAttribute(ctx, sel, "aria-selected", "true")
}

// Latest reads the most recent row.
func (l *TransactionList) Latest(ctx context.Context) (Row, error) {
	if err := l.ui.ExpectVisible(ctx, TransactionItem); err != nil {
		return Row{}, err
	}
	return readRow(ctx, l.ui)
}

// VerifyLatest waits until the most recent row matches want.
func (l *TransactionList) VerifyLatest(ctx context.Context, want Row) error {
	if err := l.ui.ExpectVisible(ctx, TransactionItem); err != nil {
		return err
	}
	return verifyRow(ctx, l.ui, want)
}

// Count returns the number of rows on the current tab.
func (l *TransactionList) Count(ctx context.Context) (int, error) {
	return l.ui.Count(ctx, TransactionItem)
}

// OpenLatest opens the most recent row's detail screen.
func (l *TransactionList) OpenLatest(ctx context.Context) error {
	if err := l.ui.Click(ctx, TransactionItem); err != nil {
		return err
	}
	if err := l.ui.ExpectText(ctx, DetailHeader, DetailHeaderText); err != nil {
		return err
	}
	return l.ui.ExpectURLContains(ctx, PathTransaction)
}
