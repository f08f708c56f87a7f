package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/raczniakservices/HVAC/internal/dashboard"
	"github.com/raczniakservices/HVAC/internal/domain"
	"github.com/raczniakservices/HVAC/internal/dto"
)

func TestPromptConfirmer(t *testing.T) {
	var out bytes.Buffer

	yes := newPromptConfirmer(strings.NewReader("y\n"), &out, false)
	assert.True(t, yes.ConfirmClearAll(3))
	assert.Contains(t, out.String(), "3 leads have no result yet")

	no := newPromptConfirmer(strings.NewReader("\n"), &out, false)
	assert.False(t, no.ConfirmDelete(dto.EventResponse{ID: 4}))

	eof := newPromptConfirmer(strings.NewReader(""), &out, false)
	assert.False(t, eof.ConfirmDelete(dto.EventResponse{ID: 4}))

	assumed := newPromptConfirmer(strings.NewReader(""), &out, true)
	assert.True(t, assumed.ConfirmDelete(dto.EventResponse{ID: 4}))
}

func TestParseArgs(t *testing.T) {
	id, err := parseID("12")
	assert.NoError(t, err)
	assert.Equal(t, int64(12), id)

	_, err = parseID("0")
	assert.Error(t, err)

	assert.Nil(t, optionalArg("-"))
	assert.Nil(t, optionalArg(""))
	assert.Equal(t, "Sam", *optionalArg("Sam"))
}

func TestTableViewRender(t *testing.T) {
	var out bytes.Buffer
	minutes := 4
	owner := "Sam"

	newTableView(&out, false).Render(dashboard.Snapshot{
		Leads: []dto.EventResponse{
			{ID: 9, CallerNumber: "+15551234567", Source: "landing_form", StateLabel: "Unhandled", Overdue: true, OverdueMinutes: &minutes},
			{ID: 8, CallerNumber: "+15557654321", Source: "telephony", StateLabel: "In progress", Owner: &owner},
		},
		Summary:     domain.Summary{Unhandled: 1, InProgress: 1, Overdue: 1, Total: 2},
		LastFetchAt: time.Now(),
	})

	text := out.String()
	assert.Contains(t, text, "Unhandled 1 (overdue 1)")
	assert.Contains(t, text, "Unhandled (overdue 4m)")
	assert.Contains(t, text, "Sam")
	assert.Contains(t, text, "just now")
}
