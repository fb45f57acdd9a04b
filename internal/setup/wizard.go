package setup

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/yolodolo42/txflow/internal/chain"
	"github.com/yolodolo42/txflow/internal/config"
	"github.com/yolodolo42/txflow/internal/ui"
)

// WizardStep represents the current step in the wizard
type WizardStep int

const (
	StepWelcome WizardStep = iota
	StepClientID
	StepChainSelect
	StepWalletChoice
	StepWalletPassword
	StepComplete
)

const totalSteps = 4 // Client ID, Chain, Wallet, Ready

// SetupResult contains the result of the setup wizard
type SetupResult struct {
	ClientID      string
	Chain         string
	WalletCreated bool
	WalletAddress string
	Cancelled     bool
}

// ValidateFunc checks that a client ID can reach the chain
type ValidateFunc func(ctx context.Context, clientID, chainKey string) error

// WizardModel is the main wizard Bubbletea model
type WizardModel struct {
	step     WizardStep
	status   *SetupStatus
	dataDir  string
	quitting bool

	// Client ID step
	clientIDInput ui.Prompt
	clientID      string
	validating    bool
	idError       string
	validate      ValidateFunc

	// Chain step
	chainSelector ui.Selector
	chainKey      string

	// Wallet step
	walletSelector ui.Selector
	passwordInput  ui.Prompt
	confirmInput   ui.Prompt
	passwordStep   int // 0=enter, 1=confirm
	passwordError  string
	walletCreated  bool
	walletAddress  string

	spinner  spinner.Model
	progress progress.Model

	result *SetupResult
}

type clientValidatedMsg struct {
	err error
}

type walletCreatedMsg struct {
	address string
	err     error
}

const (
	walletCreate = "create"
	walletSkip   = "skip"
)

func chainSelectorItems(current string) []ui.SelectorItem {
	presets := chain.Presets()
	items := make([]ui.SelectorItem, 0, len(presets))
	for _, name := range chain.PresetNames() {
		p := presets[name]
		items = append(items, ui.SelectorItem{
			ID:      p.Key,
			Label:   p.Name,
			ChainID: p.ChainID,
			Testnet: p.IsTestnet,
			Hint:    strings.TrimPrefix(p.ExplorerURL, "https://"),
			Current: p.Key == current,
		})
	}
	return items
}

func walletSelectorItems() []ui.SelectorItem {
	return []ui.SelectorItem{
		{ID: walletCreate, Label: "Create a new wallet", Description: "encrypted keystore"},
		{ID: walletSkip, Label: "Continue without wallet", Description: "read-only use"},
	}
}

// NewWizard creates a wizard starting from the loaded configuration.
// validate may be nil to check client IDs against the chain's RPC endpoint.
func NewWizard(cfg *config.Config, validate ValidateFunc) *WizardModel {
	status, _ := DetectSetupStatus(cfg)
	if validate == nil {
		validate = validateClientID
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 40

	m := &WizardModel{
		step:           StepWelcome,
		status:         status,
		dataDir:        cfg.DataDir,
		clientIDInput:  ui.NewPrompt("Paste your client ID here...", false),
		clientID:       cfg.ClientID,
		validate:       validate,
		chainSelector:  ui.NewSelector("Choose a default chain", chainSelectorItems(cfg.Chain)),
		chainKey:       cfg.Chain,
		walletSelector: ui.NewSelector("Set up wallet (optional)", walletSelectorItems()),
		passwordInput:  ui.NewPrompt("Enter password (8+ chars)", true),
		confirmInput:   ui.NewPrompt("Confirm password", true),
		spinner:        sp,
		progress:       prog,
	}

	m.confirmInput.Blur()
	if status.HasWallet {
		m.walletAddress = status.WalletAddress
	}
	return m
}

func (m WizardModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages
func (m WizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Global keys (don't swallow Esc; selectors use it).
		if msg.Type == tea.KeyCtrlC {
			m.result = &SetupResult{Cancelled: true}
			m.quitting = true
			return m, tea.Quit
		}

		switch m.step {
		case StepWelcome:
			if msg.Type == tea.KeyEnter {
				if m.status.HasClientID {
					m.step = StepChainSelect
				} else {
					m.step = StepClientID
				}
			}
			return m, nil

		case StepClientID:
			if m.validating {
				return m, nil
			}
			if msg.Type == tea.KeyEsc {
				m.clientIDInput.Reset()
				m.idError = ""
				m.step = StepWelcome
				return m, nil
			}
			if msg.Type == tea.KeyEnter {
				return m.updateClientID()
			}
			// Fall through to let input update happen

		case StepChainSelect:
			return m.updateChainSelect(msg)

		case StepWalletChoice:
			return m.updateWalletChoice(msg)

		case StepWalletPassword:
			if msg.Type == tea.KeyEsc {
				m.passwordStep = 0
				m.passwordError = ""
				m.passwordInput.Reset()
				m.confirmInput.Reset()
				m.confirmInput.Blur()
				m.walletSelector = ui.NewSelector("Set up wallet (optional)", walletSelectorItems())
				m.step = StepWalletChoice
				return m, nil
			}
			if msg.Type == tea.KeyEnter {
				return m.updateWalletPassword()
			}
			// Fall through to let input update happen

		case StepComplete:
			if msg.Type == tea.KeyEnter {
				m.result = &SetupResult{
					ClientID:      m.clientID,
					Chain:         m.chainKey,
					WalletCreated: m.walletCreated,
					WalletAddress: m.walletAddress,
				}
				m.quitting = true
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.progress.Width = min(40, msg.Width-20)
		m.chainSelector.SetWidth(msg.Width)
		m.walletSelector.SetWidth(msg.Width)
		m.clientIDInput.SetWidth(min(60, msg.Width))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case clientValidatedMsg:
		m.validating = false
		if msg.err != nil {
			m.idError = formatClientError(msg.err)
			return m, nil
		}
		m.idError = ""
		m.clientID = strings.TrimSpace(m.clientIDInput.Value())
		m.step = StepChainSelect
		return m, nil

	case walletCreatedMsg:
		if msg.err != nil {
			m.passwordError = msg.err.Error()
		} else {
			m.walletCreated = true
			m.walletAddress = msg.address
			m.step = StepComplete
		}
		return m, nil
	}

	if m.step == StepClientID && !m.validating {
		_, cmd := m.clientIDInput.Update(msg)
		cmds = append(cmds, cmd)
	}
	if m.step == StepWalletPassword {
		var cmd tea.Cmd
		if m.passwordStep == 0 {
			_, cmd = m.passwordInput.Update(msg)
		} else {
			_, cmd = m.confirmInput.Update(msg)
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// formatClientError returns a user-friendly error message
func formatClientError(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "timeout") {
		return "Connection failed. Check your internet and try again."
	}
	if strings.Contains(errStr, "401") || strings.Contains(errStr, "unauthorized") {
		return "Client ID rejected. Check it in your project settings."
	}
	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate") {
		return "Rate limited. Wait a moment and try again."
	}
	if len(errStr) > 60 {
		return errStr[:57] + "..."
	}
	return errStr
}

func (m WizardModel) updateClientID() (tea.Model, tea.Cmd) {
	id := strings.TrimSpace(m.clientIDInput.Value())
	if id == "" {
		m.idError = "Client ID is required"
		return m, nil
	}
	m.validating = true
	m.idError = ""
	return m, m.validateCmd(id)
}

func (m WizardModel) updateChainSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.chainSelector.Update(msg)
	if m.chainSelector.Active() {
		return m, nil
	}
	if m.chainSelector.Cancelled() {
		m.step = StepWelcome
		m.chainSelector = ui.NewSelector("Choose a default chain", chainSelectorItems(m.chainKey))
		return m, nil
	}

	m.chainKey = m.chainSelector.Selected()
	if m.status.HasWallet {
		m.step = StepComplete
	} else {
		m.step = StepWalletChoice
	}
	return m, nil
}

func (m WizardModel) updateWalletChoice(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.walletSelector.Update(msg)
	if m.walletSelector.Active() {
		return m, nil
	}
	if m.walletSelector.Cancelled() {
		m.step = StepChainSelect
		m.chainSelector = ui.NewSelector("Choose a default chain", chainSelectorItems(m.chainKey))
		m.walletSelector = ui.NewSelector("Set up wallet (optional)", walletSelectorItems())
		return m, nil
	}

	if m.walletSelector.Selected() == walletCreate {
		m.passwordInput.Focus()
		m.passwordStep = 0
		m.step = StepWalletPassword
		return m, nil
	}
	m.step = StepComplete
	return m, nil
}

func (m WizardModel) updateWalletPassword() (tea.Model, tea.Cmd) {
	if m.passwordStep == 0 {
		if len(m.passwordInput.Value()) < 8 {
			m.passwordError = "Password must be at least 8 characters"
			return m, nil
		}
		m.passwordStep = 1
		m.passwordError = ""
		m.passwordInput.Blur()
		return m, m.confirmInput.Focus()
	}

	if m.passwordInput.Value() != m.confirmInput.Value() {
		m.passwordError = "Passwords do not match. Try again."
		m.confirmInput.Reset()
		return m, m.confirmInput.Focus()
	}
	return m, m.createWallet()
}

// View renders the wizard
func (m WizardModel) View() string {
	if m.quitting {
		if m.result != nil && m.result.Cancelled {
			return DimStyle.Render("\n  Setup cancelled.\n\n")
		}
		return ""
	}

	var b strings.Builder

	if m.step > StepWelcome && m.step < StepComplete {
		b.WriteString("\n")
		b.WriteString(m.renderProgress())
		b.WriteString("\n")
	}

	switch m.step {
	case StepWelcome:
		b.WriteString(m.viewWelcome())
	case StepClientID:
		b.WriteString(m.viewClientID())
	case StepChainSelect:
		b.WriteString("\n" + m.chainSelector.View())
	case StepWalletChoice:
		b.WriteString(m.viewWalletChoice())
	case StepWalletPassword:
		b.WriteString(m.viewWalletPassword())
	case StepComplete:
		b.WriteString(m.viewComplete())
	}

	return b.String()
}

func (m WizardModel) renderProgress() string {
	var current int
	switch m.step {
	case StepClientID:
		current = 1
	case StepChainSelect:
		current = 2
	case StepWalletChoice, StepWalletPassword:
		current = 3
	}

	bar := m.progress.ViewAs(float64(current) / float64(totalSteps))
	labels := "  Client ID    Chain    Wallet    Ready"
	return fmt.Sprintf("  %s\n%s", bar, DimStyle.Render(labels))
}

func (m WizardModel) viewWelcome() string {
	var b strings.Builder
	b.WriteString("\n\n")

	body := TitleStyle.Render("Welcome to txflow") + "\n" +
		SubtitleStyle.Render("Prepare, send and track EVM transactions") + "\n\n"
	if m.status.HasClientID {
		body += SuccessStyle.Render("✓ Client ID found in your configuration")
	} else {
		body += "You need a client ID to reach RPC, storage and wallet services."
	}
	b.WriteString(BoxStyle.Render(body))
	b.WriteString("\n\n")
	b.WriteString(HelpStyle.Render("  Press Enter to continue..."))
	return b.String()
}

func (m WizardModel) viewClientID() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(TitleStyle.Render("  Enter your client ID"))
	b.WriteString("\n\n")
	b.WriteString(SubtitleStyle.Render("  Create one in your project dashboard. The secret key is never needed here.\n\n"))

	b.WriteString("  ")
	b.WriteString(m.clientIDInput.View())
	b.WriteString("\n")

	if m.validating {
		b.WriteString(fmt.Sprintf("\n  %s Testing connection...\n", m.spinner.View()))
	} else if m.idError != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", ErrorStyle.Render("✗ "+m.idError)))
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("  Enter to validate • Esc back"))
	return b.String()
}

func (m WizardModel) viewWalletChoice() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(DimStyle.Render("  A local wallet lets you:\n"))
	b.WriteString(DimStyle.Render("  • Send native currency and contract calls\n"))
	b.WriteString(DimStyle.Render("  • Own a smart account for user operations\n\n"))
	b.WriteString(m.walletSelector.View())
	return b.String()
}

func (m WizardModel) viewWalletPassword() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(TitleStyle.Render("  Create Wallet Password"))
	b.WriteString("\n\n")
	b.WriteString(DimStyle.Render("  This encrypts your wallet on disk.\n"))
	b.WriteString(DimStyle.Render("  Requirements: 8+ characters\n\n"))

	if m.passwordStep == 0 {
		b.WriteString("  ")
		b.WriteString(m.passwordInput.View())
		b.WriteString("\n")
	} else {
		b.WriteString(fmt.Sprintf("  Password: %s\n\n", SuccessStyle.Render("✓ set")))
		b.WriteString("  ")
		b.WriteString(m.confirmInput.View())
		b.WriteString("\n")
	}

	if m.passwordError != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", ErrorStyle.Render("✗ "+m.passwordError)))
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("  Enter to continue • Esc back"))
	return b.String()
}

func (m WizardModel) viewComplete() string {
	walletInfo := DimStyle.Render("Not configured")
	if m.walletAddress != "" {
		short := m.walletAddress
		if len(short) > 10 {
			short = short[:6] + "..." + short[len(short)-4:]
		}
		walletInfo = AddressStyle.Render(short)
	}

	clientInfo := DimStyle.Render("from environment")
	if m.clientID != "" {
		clientInfo = m.clientID
	}

	content := fmt.Sprintf(
		"%s\n\n"+
			"Client ID: %s\n"+
			"Chain:     %s\n"+
			"Wallet:    %s\n\n"+
			"%s\n"+
			"  %s\n"+
			"  %s",
		TitleStyle.Render("You're all set!"),
		clientInfo,
		m.chainKey,
		walletInfo,
		DimStyle.Render("Try these:"),
		"txflow balance --all",
		"txflow send --to 0x... --value 0.01",
	)

	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(BoxStyle.Render(content))
	b.WriteString("\n\n")
	b.WriteString(HelpStyle.Render("  Press Enter to save and exit..."))
	return b.String()
}

// Result returns the outcome once the program has quit
func (m WizardModel) Result() *SetupResult {
	return m.result
}

// RunWizard runs the interactive setup and writes the chosen client ID and
// chain to configPath
func RunWizard(cfg *config.Config, configPath string) (*SetupResult, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	m := NewWizard(cfg, nil)
	p := tea.NewProgram(*m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}

	result := finalModel.(WizardModel).Result()
	if result == nil || result.Cancelled {
		return result, nil
	}
	if err := SaveConfig(configPath, result.ClientID, result.Chain); err != nil {
		return nil, err
	}
	return result, nil
}

// PrintEnvInstructions prints setup instructions for non-interactive environments
func PrintEnvInstructions() {
	fmt.Println("txflow needs a client ID to reach RPC and storage services.")
	fmt.Println("")
	fmt.Println("Set these environment variables:")
	fmt.Println("  " + config.EnvPrefix + "_CLIENT_ID=...")
	fmt.Println("  " + config.EnvPrefix + "_CHAIN=base            (optional)")
	fmt.Println("  " + config.EnvPrefix + "_RPC=https://...       (optional, overrides the chain RPC)")
	fmt.Println("")
	fmt.Println("Or run 'txflow setup' in a terminal for guided setup.")
}

// IsInteractive returns true if running in a terminal
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
