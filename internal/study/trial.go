package study

import (
	"fmt"

	"github.com/GoSim-25-26J-441/hpo-core/pkg/distribution"
	"github.com/GoSim-25-26J-441/hpo-core/internal/storage"
)

// Trial is the handle an objective uses to request parameter values.
// It holds only the trial ID; all state lives in the study's storage.
type Trial struct {
	study *Study
	id    int
}

// ID returns the trial identifier
func (t *Trial) ID() int {
	return t.id
}

// SuggestInt draws an integer from [low, high]
func (t *Trial) SuggestInt(name string, low, high int64) (int64, error) {
	d := distribution.IntUniform{Low: low, High: high}
	v, err := t.suggest(name, d)
	if err != nil {
		return 0, err
	}
	n, _ := v.Int()
	return n, nil
}

// SuggestFloat draws a float uniformly from [low, high]
func (t *Trial) SuggestFloat(name string, low, high float64) (float64, error) {
	v, err := t.suggest(name, distribution.Uniform{Low: low, High: high})
	if err != nil {
		return 0, err
	}
	f, _ := v.Float()
	return f, nil
}

// SuggestLogFloat draws a float from [low, high] with a uniform logarithm
func (t *Trial) SuggestLogFloat(name string, low, high float64) (float64, error) {
	v, err := t.suggest(name, distribution.LogUniform{Low: low, High: high})
	if err != nil {
		return 0, err
	}
	f, _ := v.Float()
	return f, nil
}

// SuggestCategorical draws one of choices
func (t *Trial) SuggestCategorical(name string, choices []string) (string, error) {
	v, err := t.suggest(name, distribution.NewCategorical(choices))
	if err != nil {
		return "", err
	}
	s, _ := v.Str()
	return s, nil
}

// Suggest draws from an arbitrary distribution
func (t *Trial) Suggest(name string, d distribution.Distribution) (distribution.Value, error) {
	return t.suggest(name, d)
}

// Params returns the user-facing parameters recorded so far
func (t *Trial) Params() (map[string]distribution.Value, error) {
	ft, err := t.study.storage.GetTrial(t.id)
	if err != nil {
		return nil, err
	}
	return ft.ExternalParams()
}

// suggest samples, converts, and records before returning the sampled value
func (t *Trial) suggest(name string, d distribution.Distribution) (distribution.Value, error) {
	// refuse finished or unknown trials before drawing so the random stream is not consumed
	ft, err := t.study.storage.GetTrial(t.id)
	if err != nil {
		return distribution.Value{}, err
	}
	if ft.State.IsFinished() {
		return distribution.Value{}, fmt.Errorf("%w: trial %d is %s", storage.ErrAlreadyFinished, t.id, ft.State)
	}

	v, err := t.study.sampler.Sample(name, d)
	if err != nil {
		return distribution.Value{}, err
	}
	internal, err := d.ToInternal(v)
	if err != nil {
		return distribution.Value{}, fmt.Errorf("parameter %q: %w", name, err)
	}
	if err := t.study.storage.SetTrialParam(t.id, name, d, internal); err != nil {
		return distribution.Value{}, err
	}

	t.study.logger.Debug("parameter suggested",
		"trial_id", t.id,
		"param", name,
		"distribution", d.String(),
		"value", v.String(),
	)
	return v, nil
}
