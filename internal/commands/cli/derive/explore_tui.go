package derive

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/andrei-cloud/go_dukpt/internal/config"
	"github.com/andrei-cloud/go_dukpt/pkg/cryptoutils"
	"github.com/andrei-cloud/go_dukpt/pkg/dukpt"
)

// counterDigits is wide enough for any 32-bit counter in decimal.
const counterDigits = 10

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("9"))
)

type explorerModel struct {
	bdk          []byte
	bdkType      dukpt.KeyType
	wkType       dukpt.KeyType
	ksn          dukpt.KSN
	usages       []dukpt.KeyUsage
	selected     int
	counterInput string
	kcv          string
	err          error
	done         bool
}

// newExplorerModel creates the KSN explorer model and computes the first check value.
func newExplorerModel(bdk []byte, bdkType, wkType dukpt.KeyType, ksn dukpt.KSN) explorerModel {
	m := explorerModel{
		bdk:     bdk,
		bdkType: bdkType,
		wkType:  wkType,
		ksn:     ksn,
		usages: []dukpt.KeyUsage{
			dukpt.PinEncryption,
			dukpt.MacGenerate,
			dukpt.MacVerify,
			dukpt.MacBoth,
			dukpt.DataEncrypt,
			dukpt.DataDecrypt,
			dukpt.DataBoth,
			dukpt.KeyEncryptionKey,
		},
	}
	m.derive()

	return m
}

// Init initializes the model.
func (m explorerModel) Init() tea.Cmd {
	return nil
}

// Update handles key presses.
func (m explorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "q", "esc":
		m.done = true

		return m, tea.Quit
	case "n", "right":
		next, err := m.ksn.Next()
		if err != nil {
			m.err = err

			return m, nil
		}
		m.ksn = next
		m.derive()
	case "up", "k":
		if m.selected > 0 {
			m.selected--
			m.derive()
		}
	case "down", "j":
		if m.selected < len(m.usages)-1 {
			m.selected++
			m.derive()
		}
	case "backspace":
		if len(m.counterInput) > 0 {
			m.counterInput = m.counterInput[:len(m.counterInput)-1]
		}
	case "enter":
		m.applyCounterInput()
	default:
		if s := key.String(); len(s) == 1 && s[0] >= '0' && s[0] <= '9' {
			m.handleNumericInput(s[0])
		}
	}

	return m, nil
}

// handleNumericInput appends a digit while the value still fits a 32-bit counter.
func (m *explorerModel) handleNumericInput(char byte) {
	value := strings.TrimLeft(m.counterInput+string(char), "0")
	if value == "" {
		value = "0"
	}
	if len(value) > counterDigits {
		return
	}
	if _, err := strconv.ParseUint(value, 10, 32); err != nil {
		return
	}
	m.counterInput = value
}

// applyCounterInput jumps to the typed counter value.
func (m *explorerModel) applyCounterInput() {
	if m.counterInput == "" {
		return
	}
	c, err := strconv.ParseUint(m.counterInput, 10, 32)
	m.counterInput = ""
	if err != nil {
		m.err = err

		return
	}
	m.ksn = m.ksn.WithCounter(uint32(c))
	m.derive()
}

// derive recomputes the check value of the selected working key.
func (m *explorerModel) derive() {
	m.err = nil
	m.kcv = ""

	wk, err := dukpt.DeriveWorkingKeyByBDK(m.bdk, m.bdkType, m.wkType, m.usages[m.selected], m.ksn)
	if err != nil {
		m.err = err

		return
	}
	defer clear(wk)

	m.kcv, m.err = cryptoutils.KeyCheckValueHex(wk)
}

// View renders the explorer.
func (m explorerModel) View() string {
	if m.done {
		return "Explorer closed.\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("DUKPT KSN Explorer") + "\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")

	counter := m.ksn.Counter()
	fmt.Fprintf(&b, "KSN:            %s\n", m.ksn)
	fmt.Fprintf(&b, "Initial Key ID: %s\n", cryptoutils.Raw2Str(m.ksn.InitialKeyID()))
	fmt.Fprintf(&b, "Counter:        %d (%08X)\n", counter, counter)
	fmt.Fprintf(&b, "Derivations:    %d\n", m.ksn.Derivations())
	if m.ksn.ExceedsLegacyCounter() {
		b.WriteString("                " + warnStyle.Render("counter exceeds the 21-bit legacy range") + "\n")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Working key usage (%s):\n", m.wkType)
	for i, u := range m.usages {
		line := fmt.Sprintf("%04X - %s", u.Indicator(), u)
		if i == m.selected {
			fmt.Fprintf(&b, "  ● %s\n", selectedStyle.Render(line))
		} else {
			fmt.Fprintf(&b, "  ○ %s\n", line)
		}
	}
	b.WriteString("\n")

	if m.err != nil {
		fmt.Fprintf(&b, "%s\n\n", errorStyle.Render("Error: "+m.err.Error()))
	} else {
		fmt.Fprintf(&b, "KCV: %s\n\n", m.kcv)
	}

	if m.counterInput != "" {
		fmt.Fprintf(&b, "Jump to counter: [ %s ]\n\n", m.counterInput)
	}

	b.WriteString("Navigation:\n")
	b.WriteString("  n or →: Next KSN\n")
	b.WriteString("  ↑/↓ or j/k: Select key usage\n")
	b.WriteString("  0-9, Enter: Jump to counter\n")
	b.WriteString("  q or Ctrl+C: Quit\n")

	return b.String()
}

func newExploreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Interactively walk a KSN and its working keys",
		Long: `Start an interactive explorer that walks the transaction counter of a
key serial number and shows the check value of each working key. The card
BDK from the configuration is used unless --bdk is given.`,
		RunE: runExplore,
	}

	cmd.Flags().String("bdk", "", "Base derivation key in hex (default: keys.card_bdk)")
	cmd.Flags().String("ksn", "123456789012345600000001", "Starting key serial number")

	return cmd
}

func runExplore(cmd *cobra.Command, _ []string) error {
	cfg := config.Get()

	bdkHex, _ := cmd.Flags().GetString("bdk")
	if bdkHex == "" {
		bdkHex = cfg.Keys.CardBDK
	}
	ksnHex, _ := cmd.Flags().GetString("ksn")

	bdkType, err := dukpt.ParseKeyType(cfg.Dukpt.BDKKeyType)
	if err != nil {
		return err
	}
	wkType, err := dukpt.ParseKeyType(cfg.Dukpt.WorkingKeyType)
	if err != nil {
		return err
	}
	bdk, err := decodeHex("bdk", bdkHex)
	if err != nil {
		return err
	}
	ksn, err := dukpt.ParseKSN(ksnHex)
	if err != nil {
		return err
	}

	model := newExplorerModel(bdk, bdkType, wkType, ksn)
	if model.err != nil {
		return model.err
	}

	p := tea.NewProgram(model, tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.OutOrStdout()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("explorer failed: %w", err)
	}

	return nil
}
