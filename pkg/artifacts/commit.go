package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/cuemby/dialog/pkg/dialogerr"
	"github.com/cuemby/dialog/pkg/metrics"
	"github.com/cuemby/dialog/pkg/model"
	"github.com/cuemby/dialog/pkg/prolly"
	"github.com/cuemby/dialog/pkg/storage"
)

// Commit applies a batch of instructions, CAS-publishing the result. On
// ErrEditionMismatch it refreshes the cached publication and re-applies
// the same batch against the new base, bounded by the maxRetries passed
// to New.
func (a *Artifacts) Commit(ctx context.Context, instructions []Instruction) (PublicationRecord, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ArtifactCommitDuration)

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(a.maxRetries))
	var result PublicationRecord
	attempt := 0

	operation := func() error {
		if attempt > 0 {
			metrics.ArtifactCommitRetriesTotal.Inc()
		}
		attempt++
		pub, edition, err := a.resolveOrEmpty(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		eav, aev, ave, err := a.hydrateTrees(ctx, pub)
		if err != nil {
			return backoff.Permanent(err)
		}

		if err := applyBatch(ctx, eav, aev, ave, instructions); err != nil {
			return backoff.Permanent(err)
		}

		next := PublicationRecord{EAV: eav.Hash(), AEV: aev.Hash(), AVE: ave.Hash()}
		_, err = a.publication.Publish(ctx, next, edition)
		if err == nil {
			result = next
			return nil
		}
		if errors.Is(err, dialogerr.ErrEditionMismatch) {
			return err // retryable
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(operation, policy); err != nil {
		if errors.Is(err, dialogerr.ErrEditionMismatch) {
			return PublicationRecord{}, fmt.Errorf("dialog: artifacts: commit: exceeded retry budget: %w", dialogerr.ErrEditionMismatch)
		}
		return PublicationRecord{}, err
	}
	return result, nil
}

// resolveOrEmpty returns the subject's current publication (and its
// edition), or a zero PublicationRecord with a zero edition if the
// subject has never published.
func (a *Artifacts) resolveOrEmpty(ctx context.Context) (PublicationRecord, storage.Edition, error) {
	pub, ed, err := a.publication.Resolve(ctx)
	if err == nil {
		return pub, ed, nil
	}
	if err == dialogerr.ErrNotFound {
		return PublicationRecord{}, storage.Edition{}, nil
	}
	return PublicationRecord{}, storage.Edition{}, fmt.Errorf("dialog: artifacts: resolve publication: %w", err)
}

// applyBatch mutates eav/aev/ave in place per instruction.
func applyBatch(ctx context.Context, eav, aev, ave *prolly.Tree, instructions []Instruction) error {
	for _, instr := range instructions {
		switch instr.Kind {
		case Assert:
			if instr.Cardinality == model.CardinalityOne {
				if err := supersede(ctx, eav, aev, ave, instr.The, instr.Of, instr.Is); err != nil {
					return err
				}
			}
			if err := writeFact(ctx, eav, aev, ave, instr.The, instr.Of, instr.Is, record{}); err != nil {
				return err
			}
		case Retract:
			r := record{Retracted: true}
			if instr.Cause != nil {
				r.Cause = append([]byte(nil), instr.Cause[:]...)
			}
			if err := writeFact(ctx, eav, aev, ave, instr.The, instr.Of, instr.Is, r); err != nil {
				return err
			}
		default:
			return fmt.Errorf("dialog: artifacts: unknown instruction kind %d: %w", instr.Kind, dialogerr.ErrInvalidValue)
		}
	}
	return nil
}

// supersede finds every live (non-retracted) value currently held for
// (the, of) and marks each as retracted, implementing the cardinality-One
// rule that a new Assert supersedes any prior value.
func supersede(ctx context.Context, eav, aev, ave *prolly.Tree, the model.Attribute, of model.Entity, incoming model.Value) error {
	prefix := model.AEVPrefix(the, of)
	entries, errs := aev.StreamRange(ctx, prefix, nil)

	var toSupersede []model.Value
	for e := range entries {
		if !bytes.HasPrefix(e.Key, prefix) {
			continue
		}
		r, err := decodeRecord(e.Value)
		if err != nil {
			return fmt.Errorf("dialog: artifacts: decode existing record: %w", err)
		}
		if r.Retracted {
			continue
		}
		key, err := model.DecodeAEVKey(e.Key)
		if err != nil {
			continue
		}
		if key.Is.Equal(incoming) {
			continue
		}
		toSupersede = append(toSupersede, key.Is)
	}
	if err := <-errs; err != nil {
		return fmt.Errorf("dialog: artifacts: scan existing values: %w", err)
	}

	for _, is := range toSupersede {
		if err := writeFact(ctx, eav, aev, ave, the, of, is, record{Retracted: true}); err != nil {
			return err
		}
	}
	return nil
}

func writeFact(ctx context.Context, eav, aev, ave *prolly.Tree, the model.Attribute, of model.Entity, is model.Value, r record) error {
	f := model.Fact{The: the, Of: of, Is: is, Retracted: r.Retracted}
	if len(r.Cause) > 0 {
		cause, ok := model.EntityFromBytes(r.Cause)
		if ok {
			f.Cause = &cause
		}
	}
	body := encodeRecord(recordOf(f))

	if err := eav.Set(ctx, model.EAVKeyOf(f).Encode(), body); err != nil {
		return fmt.Errorf("dialog: artifacts: write eav: %w", err)
	}
	if err := aev.Set(ctx, model.AEVKeyOf(f).Encode(), body); err != nil {
		return fmt.Errorf("dialog: artifacts: write aev: %w", err)
	}
	if err := ave.Set(ctx, model.AVEKeyOf(f).Encode(), body); err != nil {
		return fmt.Errorf("dialog: artifacts: write ave: %w", err)
	}
	return nil
}
