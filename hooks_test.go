package grokcode

import (
	"context"
	"strings"
	"testing"
)

func alwaysValid(_ context.Context, _ []string) (bool, []string) {
	return true, nil
}

func alwaysBroken(_ context.Context, paths []string) (bool, []string) {
	return false, []string{"syntax error in " + paths[0]}
}

func TestModSetRecord(t *testing.T) {
	mods := NewModSet()
	mods.Record(call("1", "write_file", `{"file_path": "/tmp/a.py"}`), "Successfully wrote 3 bytes to /tmp/a.py")
	mods.Record(call("2", "edit_file", `{"file_path": "/tmp/b.py"}`), "Error: Cannot edit /tmp/b.py - file has not been read first. Read the file before modifying it.")
	mods.Record(call("3", "read_file", `{"file_path": "/tmp/c.py"}`), "     1│x")

	paths := mods.Paths()
	if len(paths) != 1 || paths[0] != "/tmp/a.py" {
		t.Errorf("only the successful write must be recorded, got %v", paths)
	}
}

func TestCompletionGateRefusesWithoutModifications(t *testing.T) {
	gate := CompletionGate(NewModSet(), alwaysValid)

	obs, handled := gate(context.Background(), call("1", "task_update", `{"task_id": "1", "status": "completed"}`))
	if !handled {
		t.Fatal("completion with no modifications must be intercepted")
	}
	if !strings.Contains(obs, "no files have been modified") {
		t.Errorf("unexpected observation: %q", obs)
	}

	// Non-completion updates pass through untouched.
	if _, handled := gate(context.Background(), call("2", "task_update", `{"task_id": "1", "status": "in_progress"}`)); handled {
		t.Error("non-completion update must not be intercepted")
	}
}

func TestCompletionGateValidatesSyntax(t *testing.T) {
	mods := NewModSet()
	mods.Record(call("1", "write_file", `{"file_path": "/tmp/a.py"}`), "Successfully wrote 1 bytes to /tmp/a.py")

	obs, handled := CompletionGate(mods, alwaysBroken)(context.Background(),
		call("2", "task_update", `{"status": "completed", "task_id": "1"}`))
	if !handled || !strings.Contains(obs, "syntax error") {
		t.Errorf("expected syntax refusal, got handled=%v obs=%q", handled, obs)
	}

	// With clean files the gate steps aside and the update executes.
	if _, handled := CompletionGate(mods, alwaysValid)(context.Background(),
		call("3", "task_update", `{"status": "completed", "task_id": "1"}`)); handled {
		t.Error("valid files must not be intercepted")
	}
}

func TestSyntaxFinishHookRetriesThenGivesUp(t *testing.T) {
	mods := NewModSet()
	mods.Record(call("1", "write_file", `{"file_path": "/tmp/a.py"}`), "Successfully wrote 1 bytes to /tmp/a.py")
	hook := NewSyntaxFinishHook(mods, alwaysBroken)

	for i := 0; i < maxSyntaxFinishAttempts-1; i++ {
		msg, again := hook.AfterFinish(context.Background())
		if !again || !strings.Contains(msg, "STOP - You have syntax errors") {
			t.Fatalf("attempt %d: expected corrective message, got again=%v msg=%q", i, again, msg)
		}
	}
	// The cap releases the agent even with errors outstanding.
	if _, again := hook.AfterFinish(context.Background()); again {
		t.Error("hook must give up after the attempt cap")
	}
}

func TestSyntaxFinishHookPassesCleanFiles(t *testing.T) {
	mods := NewModSet()
	mods.Record(call("1", "write_file", `{"file_path": "/tmp/a.py"}`), "Successfully wrote 1 bytes to /tmp/a.py")
	if _, again := NewSyntaxFinishHook(mods, alwaysValid).AfterFinish(context.Background()); again {
		t.Error("clean files must not block the exit")
	}
}

func TestPendingTaskHookRemindsThreeTimes(t *testing.T) {
	store := NewTaskStore()
	store.Create("first", "d", "")
	store.Create("second", "d", "")
	store.Create("third", "d", "")
	store.Create("fourth", "d", "")
	hook := NewPendingTaskHook(store)

	for i := 0; i < maxPendingReminders; i++ {
		msg, again := hook.AfterFinish(context.Background())
		if !again {
			t.Fatalf("reminder %d missing", i)
		}
		if !strings.Contains(msg, "pending tasks") {
			t.Errorf("unexpected message: %q", msg)
		}
		// At most three tasks are listed.
		if strings.Contains(msg, "fourth") {
			t.Errorf("more than 3 tasks listed: %q", msg)
		}
	}
	if _, again := hook.AfterFinish(context.Background()); again {
		t.Error("reminders must stop after the cap")
	}
}

func TestPendingTaskHookSilentWhenDone(t *testing.T) {
	store := NewTaskStore()
	created := store.Create("only", "d", "")
	store.Update(created.ID, TaskUpdate{Status: "completed"})

	if _, again := NewPendingTaskHook(store).AfterFinish(context.Background()); again {
		t.Error("no reminder without pending tasks")
	}
}
