package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/contract"
	"github.com/blockberries/bboard/types"
)

func execute(t *testing.T, input string, args ...string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(input))
	root.SetOut(&out)
	root.SetErr(io.Discard)
	if err := root.ExecuteContext(ctx); err != nil {
		t.Fatalf("bboard %s: %v\noutput:\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestRun_DeployPostTakeDown(t *testing.T) {
	input := strings.Join([]string{
		"1",         // deploy
		"3",         // ledger
		"1",         // post
		"TESTNOTE!", // message
		"4",         // private state
		"3",         // ledger
		"5",         // derived
		"2",         // take down
		"3",         // ledger
		"6",         // exit
	}, "\n") + "\n"
	out := execute(t, input, "run")

	steps := []string{
		"Board contract address: ",
		"Current message is: 'none'",
		"What message do you want to post?",
		"Current secret key is: '",
		"Current message is: 'TESTNOTE!'",
		"Current poster is: 'you'",
		"Current message is: 'none'",
		"Goodbye",
	}
	rest := out
	for _, step := range steps {
		i := strings.Index(rest, step)
		if i < 0 {
			t.Fatalf("expected %q in order, output:\n%s", step, out)
		}
		rest = rest[i+len(step):]
	}
}

func TestRun_AssertionsAreReported(t *testing.T) {
	input := "1\n2\n1\nfirst\n1\nsecond\n6\n"
	out := execute(t, input, "run")
	for _, msg := range []string{contract.MsgVacant, contract.MsgOccupied} {
		if !strings.Contains(out, "Rejected by the contract: "+msg) {
			t.Errorf("expected %q to be reported, output:\n%s", msg, out)
		}
	}
}

func TestRun_JoinMissingBoardThenExit(t *testing.T) {
	input := "2\n" + strings.Repeat("ab", 32) + "\n3\n"
	out := execute(t, input, "run")
	if !strings.Contains(out, "Failed: ") || !strings.Contains(out, "Goodbye") {
		t.Fatalf("expected a failed join followed by exit, output:\n%s", out)
	}
}

func TestRun_EndOfInputExits(t *testing.T) {
	out := execute(t, "", "run")
	if !strings.Contains(out, "Goodbye") {
		t.Fatalf("expected Goodbye on end of input, output:\n%s", out)
	}
}

func TestDeployments_Table(t *testing.T) {
	out := execute(t, "", "deployments", "--deploy", "2", strings.Repeat("cd", 32))
	if c := strings.Count(out, bboard.DeploymentDeployed.String()); c != 2 {
		t.Errorf("expected 2 deployed rows, got %d:\n%s", c, out)
	}
	if !strings.Contains(out, bboard.DeploymentFailed.String()) {
		t.Errorf("expected the missing board to fail:\n%s", out)
	}
	if !strings.Contains(out, types.BoardVacant.String()) {
		t.Errorf("expected vacant boards:\n%s", out)
	}
}

func TestDeployments_NeedsWork(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"deployments"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	if err := root.Execute(); err == nil {
		t.Fatal("expected an error without addresses")
	}
}

func TestWatch_NeedsRemoteNetwork(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"watch", "abcd"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "remote") {
		t.Fatalf("expected a remote network error, got %v", err)
	}
}

func TestRenderDeployments(t *testing.T) {
	msg := "hello"
	var buf bytes.Buffer
	renderDeployments(&buf, []deploymentRow{
		{
			Deployment: bboard.Deployment{ID: "a", Status: bboard.DeploymentDeployed},
			State:      &types.DerivedState{State: types.BoardOccupied, Message: &msg, IsOwner: true},
		},
		{
			Deployment: bboard.Deployment{ID: "b", Status: bboard.DeploymentFailed, Err: errors.New("no contract")},
		},
	})
	out := buf.String()
	for _, want := range []string{"ID", "hello", "occupied", "true", "no contract", "failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in table:\n%s", want, out)
		}
	}
}
