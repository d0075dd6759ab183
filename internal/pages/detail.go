package pages

import (
	"context"
	"strconv"
)

// Detail is the transaction detail projection: the row plus which request
// actions the viewer is offered.
type Detail struct {
	Row
	CanAccept bool `json:"can_accept"`
	CanReject bool `json:"can_reject"`
}

// TransactionDetail drives the transaction detail screen.
type TransactionDetail struct {
	driver
}

// NewTransactionDetail binds a detail driver.
func NewTransactionDetail(b Binding) *TransactionDetail {
	return &TransactionDetail{driver: newDriver(b)}
}

// Read returns what the screen currently shows.
func (d *TransactionDetail) Read(ctx context.Context) (Detail, error) {
	if err := d.ui.ExpectText(ctx, DetailHeader, DetailHeaderText); err != nil {
		return Detail{}, err
	}
	row, err := readRow(ctx, d.ui)
	if err != nil {
		return Detail{}, err
	}
	accept, err := d.ui.Count(ctx, AcceptRequest)
	if err != nil {
		return Detail{}, err
	}
	reject, err := d.ui.Count(ctx, RejectRequest)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Row: row, CanAccept: accept > 0, CanReject: reject > 0}, nil
}

// Verify waits until the screen matches want. The feed tabs are never
// shown on the detail screen.
func (d *TransactionDetail) Verify(ctx context.Context, want Detail) error {
	if err := d.ui.ExpectText(ctx, DetailHeader, DetailHeaderText); err != nil {
		return err
	}
	if err := d.ui.ExpectCount(ctx, TransactionTabs, 0); err != nil {
		return err
	}
	if err := verifyRow(ctx, d.ui, want.Row); err != nil {
		return err
	}
	if err := d.ui.ExpectCount(ctx, AcceptRequest, boolCount(want.CanAccept)); err != nil {
		return err
	}
	return d.ui.ExpectCount(ctx, RejectRequest, boolCount(want.CanReject))
}

// Accept accepts the pending request and waits until both request actions
// are gone.
func (d *TransactionDetail) Accept(ctx context.Context) error {
	return d.resolve(ctx, AcceptRequest)
}

// Reject rejects the pending request and waits until both request actions
// are gone.
func (d *TransactionDetail) Reject(ctx context.Context) error {
	return d.resolve(ctx, RejectRequest)
}

func (d *TransactionDetail) resolve(ctx context.Context, button string) error {
	if err := d.ui.Click(ctx, button); err != nil {
		return err
	}
	if err := d.ui.ExpectCount(ctx, AcceptRequest, 0); err != nil {
		return err
	}
	return d.ui.ExpectCount(ctx, RejectRequest, 0)
}

// Like likes the transaction and waits for the like count to move by one.
func (d *TransactionDetail) Like(ctx context.Context) error {
	before, err := readCount(ctx, d.ui, TransactionLikeCount)
	if err != nil {
		return err
	}
	if err := d.ui.Click(ctx, LikeButton); err != nil {
		return err
	}
	if err := d.ui.ExpectText(ctx, TransactionLikeCount, strconv.Itoa(before+1)); err != nil {
		return err
	}
	return d.ui.ExpectDisabled(ctx, LikeButton)
}

// Comments returns the comment texts.
func (d *TransactionDetail) Comments(ctx context.Context) ([]string, error) {
	return d.ui.ReadTexts(ctx, CommentItem)
}

func boolCount(b bool) int {
	if b {
		return 1
	}
	return 0
}
