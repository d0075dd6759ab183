package rwasim

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/rwaverify/internal/browser"
	"github.com/roach88/rwaverify/internal/money"
	"github.com/roach88/rwaverify/internal/pages"
)

// ErrClosed is returned by pages of a closed context.
var ErrClosed = errors.New("browser context closed")

// Browser renders the application screens for the drivers without a real
// browser. Every context has its own session cookie.
type Browser struct {
	backend *Backend
	baseURL string
}

var _ browser.Browser = (*Browser)(nil)

// NewBrowser creates a simulated browser for backend served at baseURL.
func NewBrowser(backend *Backend, baseURL string) *Browser {
	return &Browser{backend: backend, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewContext opens an isolated context.
func (b *Browser) NewContext(context.Context) (browser.Context, error) {
	return &Context{browser: b}, nil
}

// Close is a no-op.
func (b *Browser) Close() error { return nil }

// Context is one isolated browser context.
type Context struct {
	browser *Browser

	mu      sync.Mutex
	session string
	closed  bool
}

var _ browser.Context = (*Context)(nil)

// NewPage opens a tab on about:blank.
func (c *Context) NewPage(context.Context) (browser.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	return &Page{c: c, path: "about:blank", fields: map[string]string{}, touched: map[string]bool{}}, nil
}

// Close closes the context; its pages stop working.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.session = ""
	return nil
}

func (c *Context) user() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", ErrClosed
	}
	return c.session, nil
}

func (c *Context) setUser(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = id
}

// Page is one simulated tab.
type Page struct {
	c *Context

	mu           sync.Mutex
	path         string
	balanceCents int64
	fields       map[string]string
	touched      map[string]bool
	signinFailed bool
	onboarding   int
	contact      string
	submitted    bool
}

var _ browser.Page = (*Page)(nil)

type element struct {
	text     string
	input    bool
	disabled bool
	attrs    map[string]string
}

type screen map[string][]element

func (s screen) add(sel string, e element) {
	s[sel] = append(s[sel], e)
}

func (s screen) text(sel, text string) {
	s.add(sel, element{text: text})
}

func (s screen) button(sel, text string, enabled bool) {
	s.add(sel, element{text: text, disabled: !enabled})
}

func (s screen) input(sel string) {
	s.add(sel, element{input: true})
}

func (p *Page) backend() *Backend {
	return p.c.browser.backend
}

func (p *Page) resetForm() {
	p.fields = map[string]string{}
	p.touched = map[string]bool{}
	p.contact = ""
	p.submitted = false
	p.signinFailed = false
}

func publicPath(path string) bool {
	return path == pages.PathSignin || path == pages.PathSignup
}

// load performs a full page load of path: the signed-in user's balance is
// fetched again and unauthenticated visitors are sent to sign-in.
func (p *Page) load(path string) error {
	uid, err := p.c.user()
	if err != nil {
		return err
	}
	if uid == "" && !publicPath(path) {
		path = pages.PathSignin
	}
	if uid != "" && publicPath(path) {
		path = pages.PathHome
	}
	p.path = path
	p.resetForm()
	if uid != "" {
		u, err := p.backend().User(uid)
		if err != nil {
			return err
		}
		p.balanceCents = u.BalanceCents
		if p.path == pages.PathSettings {
			p.preloadSettings(u)
		}
	}
	return nil
}

func (p *Page) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	path := strings.TrimPrefix(url, p.c.browser.baseURL)
	if path == "" {
		path = pages.PathHome
	}
	return p.load(path)
}

func (p *Page) Reload(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load(p.path)
}

func (p *Page) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.c.user(); err != nil {
		return "", err
	}
	return p.c.browser.baseURL + p.path, nil
}

func (p *Page) Title(context.Context) (string, error) {
	if _, err := p.c.user(); err != nil {
		return "", err
	}
	return pages.AppTitle, nil
}

func (p *Page) find(sel string) ([]element, error) {
	s, err := p.render()
	if err != nil {
		return nil, err
	}
	return s[sel], nil
}

func (p *Page) Count(_ context.Context, sel string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	els, err := p.find(sel)
	return len(els), err
}

func (p *Page) Texts(_ context.Context, sel string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	els, err := p.find(sel)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(els))
	for i, e := range els {
		out[i] = e.text
	}
	return out, nil
}

func (p *Page) first(sel string) (element, error) {
	els, err := p.find(sel)
	if err != nil {
		return element{}, err
	}
	if len(els) == 0 {
		return element{}, fmt.Errorf("%s: %w", sel, browser.ErrNotFound)
	}
	return els[0], nil
}

func (p *Page) Attribute(_ context.Context, sel, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.first(sel)
	if err != nil {
		return "", false, err
	}
	v, ok := e.attrs[name]
	return v, ok, nil
}

func (p *Page) Value(_ context.Context, sel string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.first(sel)
	if err != nil {
		return "", err
	}
	if !e.input {
		return "", nil
	}
	return p.fields[sel], nil
}

func (p *Page) Enabled(_ context.Context, sel string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.first(sel)
	if err != nil {
		return false, err
	}
	return !e.disabled, nil
}

func (p *Page) Fill(_ context.Context, sel, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.first(sel)
	if err != nil {
		return err
	}
	if !e.input {
		return fmt.Errorf("%s is not an input", sel)
	}
	p.fields[sel] = value
	return nil
}

func (p *Page) Blur(_ context.Context, sel string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.first(sel); err != nil {
		return err
	}
	p.touched[sel] = true
	return nil
}

func (p *Page) Click(_ context.Context, sel string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.first(sel)
	if err != nil {
		return err
	}
	if e.disabled {
		return fmt.Errorf("%s is disabled", sel)
	}
	return p.click(sel)
}

// render builds the current screen.
func (p *Page) render() (screen, error) {
	uid, err := p.c.user()
	if err != nil {
		return nil, err
	}
	s := screen{}
	switch {
	case p.path == pages.PathSignin:
		p.renderSignin(s)
		return s, nil
	case p.path == pages.PathSignup:
		p.renderSignup(s)
		return s, nil
	case uid == "":
		return s, nil
	}

	u, err := p.backend().User(uid)
	if err != nil {
		return nil, err
	}
	p.renderChrome(s, u)
	if p.onboarding > 0 {
		p.renderOnboarding(s)
	}

	switch {
	case p.path == pages.PathHome || p.path == pages.PathContacts || p.path == pages.PathPersonal:
		p.renderFeed(s, u)
	case p.path == pages.PathNewTransaction:
		p.renderNewTransaction(s, u)
	case strings.HasPrefix(p.path, pages.PathTransaction):
		if err := p.renderDetail(s, u); err != nil {
			return nil, err
		}
	case p.path == pages.PathSettings:
		s.text(pages.ModuleTitle, pages.SettingsTitleText)
		for _, sel := range []string{pages.SettingsFirstName, pages.SettingsLastName, pages.SettingsEmail, pages.SettingsPhone} {
			s.input(sel)
		}
		s.button(pages.SettingsSubmit, "Save", true)
	case p.path == pages.PathBankAccounts:
		s.text(pages.ModuleTitle, pages.BankAccountsTitle)
		s.button(pages.BankNew, "Create", true)
		for _, a := range p.backend().BankAccounts(uid) {
			s.text(pages.BankListItem, a.BankName)
		}
	case p.path == pages.PathNewBankAccount:
		s.text(pages.ModuleTitle, pages.BankAccountsTitle)
		p.renderBankForm(s)
	case p.path == pages.PathNotifications:
		s.text(pages.ModuleTitle, pages.NotificationsTitle)
	}
	return s, nil
}

func (p *Page) renderSignin(s screen) {
	s.input(pages.SigninUsername)
	s.input(pages.SigninPassword)
	user, pass := p.fields[pages.SigninUsername], p.fields[pages.SigninPassword]
	if p.touched[pages.SigninUsername] && user == "" {
		s.text(pages.SigninUsernameHelper, pages.MsgUsernameRequired)
	}
	if p.touched[pages.SigninPassword] && len(pass) < 4 {
		s.text(pages.SigninPasswordHelper, pages.MsgPasswordShort)
	}
	s.button(pages.SigninSubmit, "Sign In", user != "" && len(pass) >= 4)
	if p.signinFailed {
		s.text(pages.SigninError, pages.SigninErrorText)
	}
	s.text(pages.SignupLink, "Don't have an account? Sign Up")
}

func (p *Page) renderSignup(s screen) {
	s.text(pages.SignupTitle, pages.SignupTitleText)
	sels := []string{pages.SignupFirstName, pages.SignupLastName, pages.SignupUsername, pages.SignupPassword, pages.SignupConfirmPassword}
	valid := true
	for _, sel := range sels {
		s.input(sel)
		if p.fields[sel] == "" {
			valid = false
		}
	}
	pass := p.fields[pages.SignupPassword]
	valid = valid && len(pass) >= 4 && pass == p.fields[pages.SignupConfirmPassword]
	s.button(pages.SignupSubmit, "Sign Up", valid)
}

func (p *Page) renderChrome(s screen, u User) {
	s.text(pages.SideNavFullName, u.FullName())
	s.text(pages.SideNavUsername, "@"+u.Username)
	s.text(pages.SideNavBalance, money.FormatCents(p.balanceCents))
	s.button(pages.SideNavHome, "Home", true)
	s.button(pages.SideNavSettings, "My Account", true)
	s.button(pages.SideNavBankAccounts, "Bank Accounts", true)
	s.button(pages.SideNavNotifications, "Notifications", true)
	s.button(pages.SideNavSignout, "Logout", true)
	s.button(pages.NewTransactionButton, "New", true)
}

func (p *Page) renderOnboarding(s screen) {
	switch p.onboarding {
	case 1:
		s.text(pages.OnboardingTitle, pages.OnboardingGetStarted)
		s.text(pages.OnboardingContent, "Real World App requires a Bank Account to perform transactions.")
		s.button(pages.OnboardingNext, "Next", true)
	case 2:
		s.text(pages.OnboardingTitle, pages.OnboardingCreateBank)
		s.text(pages.OnboardingContent, "")
		p.renderBankForm(s)
	case 3:
		s.text(pages.OnboardingTitle, pages.OnboardingFinished)
		s.text(pages.OnboardingContent, "You're all set! We're excited to have you aboard the Real World App!")
		s.button(pages.OnboardingNext, "Done", true)
	}
}

func (p *Page) renderBankForm(s screen) {
	checks := []struct {
		input, helper string
		check         func(string) string
	}{
		{pages.BankNameInput, pages.BankNameHelper, bankNameError},
		{pages.BankRoutingInput, pages.BankRoutingHelper, routingError},
		{pages.BankAccountInput, pages.BankAccountHelper, accountError},
	}
	valid := true
	for _, c := range checks {
		s.input(c.input)
		msg := c.check(p.fields[c.input])
		if msg != "" {
			valid = false
			if p.touched[c.input] {
				s.text(c.helper, msg)
			}
		}
	}
	s.button(pages.BankSubmit, "Save", valid)
}

func tabAttrs(selected bool) map[string]string {
	return map[string]string{"aria-selected": strconv.FormatBool(selected)}
}

func (p *Page) renderFeed(s screen, u User) {
	s.add(pages.TransactionTabs, element{})
	s.add(pages.TabPublic, element{text: "Everyone", attrs: tabAttrs(p.path == pages.PathHome)})
	s.add(pages.TabContacts, element{text: "Friends", attrs: tabAttrs(p.path == pages.PathContacts)})
	s.add(pages.TabPersonal, element{text: "Mine", attrs: tabAttrs(p.path == pages.PathPersonal)})

	feed := FeedEveryone
	switch p.path {
	case pages.PathContacts:
		feed = FeedFriends
	case pages.PathPersonal:
		feed = FeedMine
	}
	for _, tx := range p.backend().Transactions(u.ID, feed) {
		p.renderRow(s, u.ID, tx)
	}
}

func (p *Page) renderRow(s screen, viewer string, tx Transaction) {
	sender, _ := p.backend().User(tx.SenderID)
	receiver, _ := p.backend().User(tx.ReceiverID)

	action := pages.ActionPaid
	if tx.Kind == KindRequest {
		action = pages.ActionRequested
		if tx.RequestStatus == RequestAccepted {
			action = pages.ActionCharged
		}
	}

	party := viewer == tx.SenderID || viewer == tx.ReceiverID
	negative := viewer == tx.Payer() || (!party && tx.Kind == KindPayment)
	amount := "+" + money.FormatCents(tx.AmountCents)
	if negative {
		amount = "-" + money.FormatCents(tx.AmountCents)
	}

	s.text(pages.TransactionItem, fmt.Sprintf("%s %s %s", sender.FullName(), action, receiver.FullName()))
	s.text(pages.TransactionSender, sender.FullName())
	s.text(pages.TransactionReceiver, receiver.FullName())
	s.text(pages.TransactionAction, action)
	s.text(pages.TransactionAmount, amount)
	s.text(pages.TransactionDescription, tx.Note)
	s.text(pages.TransactionLikeCount, strconv.Itoa(len(tx.Likes)))
	s.text(pages.TransactionCommentCount, strconv.Itoa(len(tx.Comments)))
}

func (p *Page) parsedAmount() (int64, bool) {
	n, err := money.ParseAmount(p.fields[pages.AmountInput])
	return n, err == nil && n > 0
}

func (p *Page) renderNewTransaction(s screen, u User) {
	if p.submitted {
		s.text(pages.AlertSuccess, pages.SubmittedText)
		s.button(pages.ReturnToTransactions, "Return To Transactions", true)
		return
	}
	if p.contact == "" {
		s.input(pages.UserSearchInput)
		results := p.backend().SearchUsers(u.ID, p.fields[pages.UserSearchInput])
		for _, r := range results {
			s.text(pages.UserListItem, r.FullName())
		}
		if len(results) == 0 {
			s.text(pages.EmptyListHeader, pages.NoUsersFoundText)
		}
		return
	}
	contact, err := p.backend().User(p.contact)
	if err != nil {
		return
	}
	s.text(pages.SelectedUserName, contact.FullName())
	s.text(pages.SelectedUserUsername, "@"+contact.Username)
	s.input(pages.AmountInput)
	s.input(pages.NoteInput)
	_, amountOK := p.parsedAmount()
	ready := amountOK && strings.TrimSpace(p.fields[pages.NoteInput]) != ""
	s.button(pages.SubmitRequest, "Request", ready)
	s.button(pages.SubmitPayment, "Pay", ready)
}

func (p *Page) detailID() string {
	return strings.TrimPrefix(p.path, pages.PathTransaction)
}

func (p *Page) renderDetail(s screen, u User) error {
	tx, err := p.backend().Transaction(p.detailID())
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.text(pages.DetailHeader, pages.DetailHeaderText)
	p.renderRow(s, u.ID, tx)
	liked := false
	for _, id := range tx.Likes {
		if id == u.ID {
			liked = true
		}
	}
	s.button(pages.LikeButton, "Like", !liked)
	if tx.Kind == KindRequest && tx.RequestStatus == RequestPending && tx.ReceiverID == u.ID {
		s.button(pages.AcceptRequest, "Accept Request", true)
		s.button(pages.RejectRequest, "Reject Request", true)
	}
	for _, c := range tx.Comments {
		s.text(pages.CommentItem, c)
	}
	return nil
}

func (p *Page) preloadSettings(u User) {
	p.fields[pages.SettingsFirstName] = u.FirstName
	p.fields[pages.SettingsLastName] = u.LastName
	p.fields[pages.SettingsEmail] = u.Email
	p.fields[pages.SettingsPhone] = u.PhoneNumber
}

// goTo is in-app navigation: no reload, the balance display stays as is.
func (p *Page) goTo(path string) error {
	p.path = path
	p.resetForm()
	if path == pages.PathSettings {
		uid, err := p.c.user()
		if err != nil {
			return err
		}
		u, err := p.backend().User(uid)
		if err != nil {
			return err
		}
		p.preloadSettings(u)
	}
	return nil
}

// click dispatches a click on sel for the current screen. The element is
// known to exist and be enabled.
func (p *Page) click(sel string) error {
	uid, err := p.c.user()
	if err != nil {
		return err
	}
	be := p.backend()

	switch sel {
	case pages.SigninSubmit:
		u, err := be.Authenticate(p.fields[pages.SigninUsername], p.fields[pages.SigninPassword])
		if err != nil {
			p.signinFailed = true
			return nil
		}
		p.c.setUser(u.ID)
		if err := p.goTo(pages.PathHome); err != nil {
			return err
		}
		p.balanceCents = u.BalanceCents
		p.onboarding = 0
		if len(be.BankAccounts(u.ID)) == 0 {
			p.onboarding = 1
		}
		return nil
	case pages.SignupLink:
		return p.goTo(pages.PathSignup)
	case pages.SignupSubmit:
		_, err := be.CreateUser(User{
			FirstName: p.fields[pages.SignupFirstName],
			LastName:  p.fields[pages.SignupLastName],
			Username:  p.fields[pages.SignupUsername],
			Password:  p.fields[pages.SignupPassword],
		})
		if err != nil {
			return nil
		}
		return p.goTo(pages.PathSignin)
	case pages.OnboardingNext:
		if p.onboarding == 3 {
			p.onboarding = 0
		} else {
			p.onboarding++
		}
		return nil
	case pages.BankSubmit:
		_, err := be.CreateBankAccount(uid, p.fields[pages.BankNameInput], p.fields[pages.BankAccountInput], p.fields[pages.BankRoutingInput])
		if err != nil {
			return err
		}
		if p.onboarding == 2 {
			p.onboarding = 3
			for _, f := range []string{pages.BankNameInput, pages.BankRoutingInput, pages.BankAccountInput} {
				delete(p.fields, f)
			}
			return nil
		}
		return p.goTo(pages.PathBankAccounts)
	case pages.SideNavHome, pages.TabPublic:
		return p.goTo(pages.PathHome)
	case pages.TabContacts:
		return p.goTo(pages.PathContacts)
	case pages.TabPersonal:
		return p.goTo(pages.PathPersonal)
	case pages.SideNavSettings:
		return p.goTo(pages.PathSettings)
	case pages.SideNavBankAccounts:
		return p.goTo(pages.PathBankAccounts)
	case pages.BankNew:
		return p.goTo(pages.PathNewBankAccount)
	case pages.SideNavNotifications:
		return p.goTo(pages.PathNotifications)
	case pages.SideNavSignout:
		p.c.setUser("")
		p.onboarding = 0
		return p.goTo(pages.PathSignin)
	case pages.NewTransactionButton:
		return p.goTo(pages.PathNewTransaction)
	case pages.UserListItem:
		results := be.SearchUsers(uid, p.fields[pages.UserSearchInput])
		p.contact = results[0].ID
		return nil
	case pages.SubmitPayment, pages.SubmitRequest:
		amount, _ := p.parsedAmount()
		note := p.fields[pages.NoteInput]
		var err error
		if sel == pages.SubmitPayment {
			_, err = be.Pay(uid, p.contact, amount*100, note)
		} else {
			_, err = be.Request(uid, p.contact, amount*100, note)
		}
		if err != nil {
			return err
		}
		p.submitted = true
		return nil
	case pages.ReturnToTransactions:
		return p.goTo(pages.PathHome)
	case pages.TransactionItem:
		feed := map[string]Feed{pages.PathHome: FeedEveryone, pages.PathContacts: FeedFriends, pages.PathPersonal: FeedMine}[p.path]
		txs := be.Transactions(uid, feed)
		return p.goTo(pages.PathTransaction + txs[0].ID)
	case pages.AcceptRequest:
		return be.Accept(uid, p.detailID())
	case pages.RejectRequest:
		return be.Reject(uid, p.detailID())
	case pages.LikeButton:
		return be.Like(uid, p.detailID())
	case pages.SettingsSubmit:
		first, last := p.fields[pages.SettingsFirstName], p.fields[pages.SettingsLastName]
		email, phone := p.fields[pages.SettingsEmail], p.fields[pages.SettingsPhone]
		return be.UpdateUser(uid, ProfileUpdate{FirstName: &first, LastName: &last, Email: &email, PhoneNumber: &phone})
	}
	return fmt.Errorf("click %s: no handler on %s", sel, p.path)
}
