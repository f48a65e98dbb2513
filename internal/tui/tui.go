package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/balkashynov/hangar/internal/engine"
	"github.com/balkashynov/hangar/internal/service"
	"github.com/balkashynov/hangar/internal/timeutil"
)

// RunTimerTUI shows the live timer for findingID. If employeeID has an open
// session there, the stop keys close it with the chosen disposition.
func RunTimerTUI(svc *service.Service, findingID, employeeID string) error {
	f, err := svc.Overview(findingID)
	if err != nil {
		return err
	}

	model := NewTimerModel(svc.Engine(), f.Finding, employeeID)
	p := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	m := finalModel.(TimerModel)
	if m.disposition == "" {
		if _, ok := m.own(); ok {
			fmt.Printf("\n💡 Session is still running for %s on %s.\n", employeeID, findingID)
			fmt.Printf("   Use 'hangar stop %s --emp %s' to stop it.\n", findingID, employeeID)
		}
		return nil
	}

	res, err := svc.Stop(context.Background(), engine.StopRequest{
		FindingID:   findingID,
		EmployeeID:  employeeID,
		Disposition: m.disposition,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to stop session: %w", err)
	}
	fmt.Printf("⏹️  Stopped %s on %s (%s)\n", employeeID, findingID, m.disposition)
	fmt.Printf("📊 Session duration: %s\n", timeutil.FormatClock(res.Session.Duration))
	fmt.Printf("Finding status: %s\n", res.Status)
	return nil
}
