package build

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ChamsBouzaiene/foreman/internal/engine"
	"github.com/ChamsBouzaiene/foreman/internal/roles"
	"github.com/ChamsBouzaiene/foreman/internal/state"
)

// chunkSize bounds how many file tasks build concurrently. Tasks inside a
// chunk run in parallel; chunks run strictly one after another so a later
// chunk can import what an earlier one produced.
const chunkSize = 3

// license tells the engineer whether it is creating a file or reworking
// an existing one.
const (
	licenseBuild = "BUILD"
	licenseRefac = "REFAC"
)

// runConstruction iterates the plan's phases from the checkpoint onward,
// building each file through the judge/engineer/auditor pipeline.
func (c *Controller) runConstruction(ctx context.Context, plan *Plan, resume bool) error {
	startPhase := 0
	if resume {
		if cp := c.store.Snapshot().Checkpoint; !cp.Timestamp.IsZero() {
			startPhase = cp.LastPhaseIndex
			if startPhase >= len(plan.Phases) {
				startPhase = len(plan.Phases) - 1
			}
			log.Printf("🏗️ resuming construction at phase %d (%s)", startPhase+1, cp.LastFilePath)
		}
	}

	for pi := startPhase; pi < len(plan.Phases); pi++ {
		phase := plan.Phases[pi]
		log.Printf("🏗️ phase %d/%d: %s (%d files)", pi+1, len(plan.Phases), phase.Name, len(phase.Files))

		for start := 0; start < len(phase.Files); start += chunkSize {
			end := start + chunkSize
			if end > len(phase.Files) {
				end = len(phase.Files)
			}

			// A failed file must not cancel its chunk siblings, so the group
			// funcs never return errors; the join only waits.
			var g errgroup.Group
			for _, task := range phase.Files[start:end] {
				task := task
				g.Go(func() error {
					if err := c.buildFile(ctx, pi, task, resume); err != nil {
						log.Printf("❌ %s: %v", task.Path, err)
						c.store.AddBug(task.Path, err.Error())
						c.store.RecordEvent("file_failed", task.Path+": "+err.Error())
					}
					return nil
				})
			}
			g.Wait()

			if err := ctx.Err(); err != nil {
				return fmt.Errorf("construction cancelled: %w", err)
			}
		}
	}
	c.store.RecordEvent("construction", "all phases processed")
	return nil
}

// buildFile runs the per-file pipeline: resume skip, judge, engineer,
// audit, checkpoint, invalidation.
func (c *Controller) buildFile(ctx context.Context, phaseIndex int, task FileTask, resume bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if resume {
		if rec := c.store.FileRecordFor(task.Path); rec != nil && rec.Status == state.StatusPerfected {
			log.Printf("⏭️ %s already perfected, skipping", task.Path)
			return nil
		}
	}

	license := licenseBuild
	if c.fileExists(task.Path) {
		verdict, err := c.judgeFile(ctx, task)
		if err != nil {
			return fmt.Errorf("judge failed: %w", err)
		}
		if verdict == "SKIP" {
			log.Printf("⏭️ %s judged complete, skipping", task.Path)
			c.store.SetCheckpoint(phaseIndex, task.Path)
			return nil
		}
		license = licenseRefac
	}

	log.Printf("🔨 %s (%s)", task.Path, license)
	if _, err := c.agents.Run(ctx, roles.Engineer, engine.Task{
		Instruction: fmt.Sprintf("Realize the file %s so it fully satisfies its description. Mode: %s.", task.Path, license),
		Context: map[string]string{
			"path":        task.Path,
			"description": task.Description,
			"mode":        license,
		},
	}); err != nil {
		return fmt.Errorf("engineer failed: %w", err)
	}

	status, auditText := c.auditFile(ctx, task)
	if err := c.store.SetFileStatus(task.Path, status, auditText); err != nil {
		return fmt.Errorf("cannot persist file status: %w", err)
	}
	if err := c.store.SetCheckpoint(phaseIndex, task.Path); err != nil {
		return fmt.Errorf("cannot persist checkpoint: %w", err)
	}

	c.invalidateDependents(ctx, task.Path)
	return nil
}

// judgeFile classifies an existing file as SKIP or REFAC.
func (c *Controller) judgeFile(ctx context.Context, task FileTask) (string, error) {
	rec := c.store.FileRecordFor(task.Path)
	status := "untracked"
	if rec != nil {
		status = string(rec.Status)
	}

	reply, err := c.agents.Run(ctx, roles.Judge, engine.Task{
		Instruction: "Decide whether this existing file can be kept as is. Reply SKIP or REFAC.",
		Context: map[string]string{
			"path":        task.Path,
			"description": task.Description,
			"status":      status,
		},
	})
	if err != nil {
		return "", err
	}
	if strings.Contains(strings.ToUpper(reply), "SKIP") {
		return "SKIP", nil
	}
	return "REFAC", nil
}

// auditFile grades the engineer's output. PASS marks the file perfected;
// anything else, including an audit that errors out, leaves it merely
// built so a resumed run revisits it.
func (c *Controller) auditFile(ctx context.Context, task FileTask) (state.FileStatus, string) {
	reply, err := c.agents.Run(ctx, roles.Auditor, engine.Task{
		Instruction: "Audit this freshly built file against its description. Start your reply with PASS or FAIL.",
		Context: map[string]string{
			"path":        task.Path,
			"description": task.Description,
		},
	})
	if err != nil {
		log.Printf("⚠️ audit of %s failed: %v", task.Path, err)
		return state.StatusBuilt, "audit error: " + err.Error()
	}

	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(reply)), "PASS") {
		return state.StatusPerfected, reply
	}
	return state.StatusBuilt, reply
}

// invalidateDependents downgrades tracked files that import the freshly
// built path to STALE. One hop only: a stale file's own dependents are
// reconsidered when that file is rebuilt, not now.
func (c *Controller) invalidateDependents(ctx context.Context, path string) {
	if c.index == nil {
		return
	}
	dependents, err := c.index.Dependents(ctx, filepath.ToSlash(path))
	if err != nil {
		log.Printf("⚠️ dependent lookup for %s failed: %v", path, err)
		return
	}
	for _, dep := range dependents {
		rec := c.store.FileRecordFor(dep)
		if rec == nil {
			continue
		}
		if rec.Status == state.StatusBuilt || rec.Status == state.StatusPerfected {
			log.Printf("♻️ %s depends on %s, marked stale", dep, path)
			c.store.MarkStale(dep)
			c.store.RecordEvent("invalidated", dep+" stale after "+path)
		}
	}
}

func (c *Controller) fileExists(rel string) bool {
	info, err := os.Stat(filepath.Join(c.root, rel))
	return err == nil && !info.IsDir()
}
