package derive

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrei-cloud/go_dukpt/pkg/cryptoutils"
	"github.com/andrei-cloud/go_dukpt/pkg/dukpt"
)

func newTestExplorer(t *testing.T, ksnHex string) explorerModel {
	t.Helper()
	bdk, err := cryptoutils.Str2Raw("FEDCBA9876543210F1F1F1F1F1F1F1F1")
	require.NoError(t, err)
	ksn, err := dukpt.ParseKSN(ksnHex)
	require.NoError(t, err)

	return newExplorerModel(bdk, dukpt.AES128, dukpt.AES128, ksn)
}

func press(t *testing.T, m explorerModel, keys ...tea.KeyMsg) explorerModel {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		var ok bool
		m, ok = next.(explorerModel)
		require.True(t, ok)
	}

	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func kcvOf(t *testing.T, keyHex string) string {
	t.Helper()
	key, err := cryptoutils.Str2Raw(keyHex)
	require.NoError(t, err)
	kcv, err := cryptoutils.KeyCheckValueHex(key)
	require.NoError(t, err)

	return kcv
}

func TestExplorerInitialState(t *testing.T) {
	t.Parallel()

	m := newTestExplorer(t, "123456789012345600000001")
	require.NoError(t, m.err)
	assert.Equal(t, dukpt.PinEncryption, m.usages[m.selected])
	assert.Equal(t, kcvOf(t, "AF8CB133A78F8DC2D1359F18527593FB"), m.kcv)

	view := m.View()
	assert.Contains(t, view, "123456789012345600000001")
	assert.Contains(t, view, "Derivations:    1")
	assert.Contains(t, view, m.kcv)
}

func TestExplorerUsageSelection(t *testing.T) {
	t.Parallel()

	m := newTestExplorer(t, "123456789012345600000001")
	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, dukpt.MacGenerate, m.usages[m.selected])
	assert.Equal(t, kcvOf(t, "A2DC23DE6FDE0824A2BC321E08E4B8B7"), m.kcv)

	// Selection stops at the first entry.
	m = press(t, m, tea.KeyMsg{Type: tea.KeyUp}, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, m.selected)
}

func TestExplorerNextAndJump(t *testing.T) {
	t.Parallel()

	m := newTestExplorer(t, "123456789012345600000001")
	m = press(t, m, runes("n"))
	assert.Equal(t, uint32(2), m.ksn.Counter())

	m = press(t, m, runes("1"), runes("3"), runes("1"), runes("0"), runes("7"), runes("0"))
	assert.Equal(t, "131070", m.counterInput)
	assert.Contains(t, m.View(), "Jump to counter: [ 131070 ]")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, m.counterInput)
	assert.Equal(t, "12345678901234560001FFFE", m.ksn.String())
	assert.Equal(t, kcvOf(t, "DDF7E08A84B5478C498D007C743BF762"), m.kcv)
}

func TestExplorerNumericInput(t *testing.T) {
	t.Parallel()

	m := newTestExplorer(t, "123456789012345600000001")

	m.handleNumericInput('0')
	assert.Equal(t, "0", m.counterInput)

	m.counterInput = "429496729"
	m.handleNumericInput('6') // 4294967296 does not fit 32 bits.
	assert.Equal(t, "429496729", m.counterInput)
	m.handleNumericInput('5')
	assert.Equal(t, "4294967295", m.counterInput)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "429496729", m.counterInput)
}

func TestExplorerCounterExhausted(t *testing.T) {
	t.Parallel()

	m := newTestExplorer(t, "1234567890123456FFFF0000")
	require.NoError(t, m.err)

	m = press(t, m, runes("n"))
	assert.ErrorIs(t, m.err, dukpt.ErrCounterExhausted)
	assert.Equal(t, "1234567890123456FFFF0000", m.ksn.String())
	assert.Contains(t, m.View(), "Error:")
	assert.Contains(t, m.View(), "21-bit legacy range")
}

func TestExplorerQuit(t *testing.T) {
	t.Parallel()

	m := newTestExplorer(t, "123456789012345600000001")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, next.(explorerModel).done)
	assert.Equal(t, "Explorer closed.\n", next.(explorerModel).View())
}
