package pages

// Selectors used by the drivers. The simulator renders the same selectors,
// so this file is the single source of truth for the UI contract.
const (
	SigninUsername       = "#username"
	SigninPassword       = "#password"
	SigninSubmit         = "[data-test='signin-submit']"
	SigninError          = "[data-test='signin-error']"
	SigninUsernameHelper = "#username-helper-text"
	SigninPasswordHelper = "#password-helper-text"
	SignupLink           = "[data-test='signup']"

	SignupTitle           = "[data-test='signup-title']"
	SignupFirstName       = "#firstName"
	SignupLastName        = "#lastName"
	SignupUsername        = "#username"
	SignupPassword        = "#password"
	SignupConfirmPassword = "#confirmPassword"
	SignupSubmit          = "[data-test='signup-submit']"

	OnboardingTitle   = "[data-test='user-onboarding-dialog-title']"
	OnboardingContent = "[data-test='user-onboarding-dialog-content']"
	OnboardingNext    = "[data-test='user-onboarding-next']"

	BankNameInput     = "#bankaccount-bankName-input"
	BankRoutingInput  = "#bankaccount-routingNumber-input"
	BankAccountInput  = "#bankaccount-accountNumber-input"
	BankNameHelper    = "#bankaccount-bankName-input-helper-text"
	BankRoutingHelper = "#bankaccount-routingNumber-input-helper-text"
	BankAccountHelper = "#bankaccount-accountNumber-input-helper-text"
	BankSubmit        = "[data-test='bankaccount-submit']"
	BankNew           = "[data-test='bankaccount-new']"
	BankListItem      = "[data-test^='bankaccount-list-item']"

	SideNavFullName      = "[data-test='sidenav-user-full-name']"
	SideNavUsername      = "[data-test='sidenav-username']"
	SideNavBalance       = "[data-test='sidenav-user-balance']"
	SideNavHome          = "[data-test='sidenav-home']"
	SideNavSettings      = "[data-test='sidenav-user-settings']"
	SideNavBankAccounts  = "[data-test='sidenav-bankaccounts']"
	SideNavNotifications = "[data-test='sidenav-notifications']"
	SideNavSignout       = "[data-test='sidenav-signout']"
	ModuleTitle          = "main h2"

	SettingsFirstName = "[data-test='user-settings-firstName-input']"
	SettingsLastName  = "[data-test='user-settings-lastName-input']"
	SettingsEmail     = "[data-test='user-settings-email-input']"
	SettingsPhone     = "[data-test='user-settings-phoneNumber-input']"
	SettingsSubmit    = "[data-test='user-settings-submit']"

	NewTransactionButton = "[data-test='nav-top-new-transaction']"
	UserSearchInput      = "[data-test='user-list-search-input']"
	UserListItem         = "[data-test^='user-list-item']"
	EmptyListHeader      = "[data-test='empty-list-header']"
	SelectedUserName     = "[data-test='transaction-create-selected-user-name']"
	SelectedUserUsername = "[data-test='transaction-create-selected-user-username']"
	AmountInput          = "#amount"
	NoteInput            = "#transaction-create-description-input"
	SubmitPayment        = "[data-test='transaction-create-submit-payment']"
	SubmitRequest        = "[data-test='transaction-create-submit-request']"
	AlertSuccess         = "[data-test='alert-bar-success']"
	ReturnToTransactions = "[data-test='new-transaction-return-to-transactions']"

	TransactionTabs         = "[data-test='nav-transaction-tabs']"
	TabPublic               = "[data-test='nav-public-tab']"
	TabContacts             = "[data-test='nav-contacts-tab']"
	TabPersonal             = "[data-test='nav-personal-tab']"
	TransactionItem         = "[data-test^='transaction-item']"
	TransactionSender       = "[data-test^='transaction-sender']"
	TransactionReceiver     = "[data-test^='transaction-receiver']"
	TransactionAction       = "[data-test^='transaction-action']"
	TransactionAmount       = "[data-test^='transaction-amount']"
	TransactionDescription  = "[data-test^='transaction-description']"
	TransactionLikeCount    = "[data-test^='transaction-like-count']"
	TransactionCommentCount = "[data-test^='transaction-comment-count']"

	DetailHeader  = "[data-test='transaction-detail-header']"
	LikeButton    = "[data-test^='transaction-like-button']"
	AcceptRequest = "[data-test^='transaction-accept-request']"
	RejectRequest = "[data-test^='transaction-reject-request']"
	CommentItem   = "[data-test^='comment-list-item']"
)

// Paths the drivers navigate to or expect.
const (
	PathSignin         = "/signin"
	PathSignup         = "/signup"
	PathHome           = "/"
	PathContacts       = "/contacts"
	PathPersonal       = "/personal"
	PathNewTransaction = "/transaction/new"
	PathTransaction    = "/transaction/"
	PathSettings       = "/user/settings"
	PathBankAccounts   = "/bankaccounts"
	PathNewBankAccount = "/bankaccounts/new"
	PathNotifications  = "/notifications"
)

// Texts the application renders.
const (
	AppTitle             = "Cypress Real World App"
	SignupTitleText      = "Sign Up"
	SigninErrorText      = "Username or password is invalid"
	OnboardingGetStarted = "Get Started with Real World App"
	OnboardingCreateBank = "Create Bank Account"
	OnboardingFinished   = "Finished"
	DetailHeaderText     = "Transaction Detail"
	SubmittedText        = "Transaction Submitted!"
	NoUsersFoundText     = "No Users Found"
	SettingsTitleText    = "User Settings"
	BankAccountsTitle    = "Bank Accounts"
	NotificationsTitle   = "Notifications"

	ActionPaid      = "paid"
	ActionRequested = "requested"
	ActionCharged   = "charged"
)

// Validation messages.
const (
	MsgUsernameRequired = "Username is required"
	MsgPasswordShort    = "Password must contain at least 4 characters"
	MsgBankNameRequired = "Enter a bank name"
	MsgBankNameShort    = "Must contain at least 5 characters"
	MsgRoutingRequired  = "Enter a valid bank routing number"
	MsgRoutingInvalid   = "Must contain a valid routing number"
	MsgAccountRequired  = "Enter a valid bank account number"
	MsgAccountShort     = "Must contain at least 9 digits"
	MsgAccountLong      = "Must contain no more than 12 digits"
)
