package model_selection

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/nggra/obesity/core/model"
	"github.com/nggra/obesity/core/parallel"
	"github.com/nggra/obesity/pkg/errors"
	"github.com/nggra/obesity/pkg/log"
)

// contextFitter is implemented by estimators whose training can be cancelled.
type contextFitter interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
}

// CandidateResult is the cross-validated score of one grid point.
type CandidateResult struct {
	Params     map[string]interface{}
	FoldScores []float64
	MeanScore  float64
	StdScore   float64
	Rank       int
}

// GridSearchCV scores every point of a parameter grid by cross-validated
// accuracy and refits the best one on all the data it was given.
type GridSearchCV struct {
	newEstimator func() model.Classifier
	grid         ParamGrid
	cv           Splitter
	nJobs        int
	refit        bool
	logger       log.Logger

	results_       []CandidateResult
	bestIndex_     int
	bestEstimator_ model.Classifier
}

// GridSearchOption configures a GridSearchCV.
type GridSearchOption func(*GridSearchCV)

// WithCV sets the splitter. The default is a 3-fold StratifiedKFold
// without shuffling.
func WithCV(cv Splitter) GridSearchOption {
	return func(g *GridSearchCV) { g.cv = cv }
}

// WithNJobs sets how many candidate/fold fits run at once. 0 uses every CPU.
func WithNJobs(n int) GridSearchOption {
	return func(g *GridSearchCV) { g.nJobs = n }
}

// WithRefit toggles refitting the best candidate after the search.
func WithRefit(refit bool) GridSearchOption {
	return func(g *GridSearchCV) { g.refit = refit }
}

// WithSearchLogger sets the logger.
func WithSearchLogger(l log.Logger) GridSearchOption {
	return func(g *GridSearchCV) { g.logger = l }
}

// NewGridSearchCV creates a search. newEstimator must return a fresh,
// unfitted estimator on every call; grid values are applied with SetParams.
func NewGridSearchCV(newEstimator func() model.Classifier, grid ParamGrid, opts ...GridSearchOption) *GridSearchCV {
	g := &GridSearchCV{
		newEstimator: newEstimator,
		grid:         grid,
		cv:           NewStratifiedKFold(3, false, 0),
		refit:        true,
		logger:       log.GetLoggerWithName("model_selection.grid_search"),
		bestIndex_:   -1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type foldData struct {
	Xtrain, ytrain mat.Matrix
	Xtest, ytest   mat.Matrix
}

// Fit runs the search on X (n×d) and y (n×1). Every candidate/fold pair is
// independent; scores are stored by index so the outcome does not depend on
// scheduling. The best candidate is the first one with the highest mean
// score.
func (g *GridSearchCV) Fit(ctx context.Context, X, y mat.Matrix) error {
	start := time.Now()
	points, err := g.grid.Points()
	if err != nil {
		return err
	}
	folds, err := g.cv.Split(X, y)
	if err != nil {
		return err
	}

	data := make([]foldData, len(folds))
	for i, f := range folds {
		data[i] = foldData{
			Xtrain: TakeRows(X, f.TrainIndices),
			ytrain: TakeRows(y, f.TrainIndices),
			Xtest:  TakeRows(X, f.TestIndices),
			ytest:  TakeRows(y, f.TestIndices),
		}
	}

	g.logger.Info("grid search started",
		log.OperationKey, log.OperationSearch,
		log.CandidatesKey, len(points),
		log.FoldsKey, len(folds),
		log.WorkersKey, parallel.Workers(g.nJobs, len(points)*len(folds)),
	)

	scores := make([][]float64, len(points))
	for i := range scores {
		scores[i] = make([]float64, len(folds))
	}
	nFolds := len(folds)
	err = parallel.ForEach(ctx, len(points)*nFolds, g.nJobs, func(task int) error {
		c, f := task/nFolds, task%nFolds
		est, err := g.build(points[c])
		if err != nil {
			return err
		}
		if err := fit(ctx, est, data[f].Xtrain, data[f].ytrain); err != nil {
			return errors.NewTrainingError("GridSearchCV.Fit",
				fmt.Sprintf("candidate %d fold %d", c, f), err)
		}
		scores[c][f] = est.Score(data[f].Xtest, data[f].ytest)
		return nil
	})
	if err != nil {
		return err
	}

	results := make([]CandidateResult, len(points))
	best := 0
	for i, p := range points {
		mean, variance := stat.PopMeanVariance(scores[i], nil)
		results[i] = CandidateResult{
			Params:     p,
			FoldScores: scores[i],
			MeanScore:  mean,
			StdScore:   math.Sqrt(variance),
		}
		if mean > results[best].MeanScore {
			best = i
		}
		g.logger.Debug("candidate scored",
			log.CandidateKey, i,
			log.HyperParamsKey, p,
			log.CVScoreKey, mean,
			log.CVStdKey, results[i].StdScore,
		)
	}
	for i := range results {
		rank := 1
		for j := range results {
			if results[j].MeanScore > results[i].MeanScore {
				rank++
			}
		}
		results[i].Rank = rank
	}
	g.results_ = results
	g.bestIndex_ = best

	if g.refit {
		est, err := g.build(points[best])
		if err != nil {
			return err
		}
		if err := fit(ctx, est, X, y); err != nil {
			return errors.NewTrainingError("GridSearchCV.Fit", "refit of best candidate", err)
		}
		g.bestEstimator_ = est
	}

	g.logger.Info("grid search finished",
		log.OperationKey, log.OperationSearch,
		log.CandidateKey, best,
		log.HyperParamsKey, points[best],
		log.CVScoreKey, results[best].MeanScore,
		log.CVStdKey, results[best].StdScore,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (g *GridSearchCV) build(params map[string]interface{}) (model.Classifier, error) {
	est := g.newEstimator()
	if err := est.SetParams(params); err != nil {
		return nil, errors.Wrapf(err, "invalid grid point %v", params)
	}
	return est, nil
}

func fit(ctx context.Context, est model.Classifier, X, y mat.Matrix) error {
	if cf, ok := est.(contextFitter); ok {
		return cf.FitContext(ctx, X, y)
	}
	return est.Fit(X, y)
}

// Results returns the per-candidate scores in grid order.
func (g *GridSearchCV) Results() []CandidateResult {
	return append([]CandidateResult(nil), g.results_...)
}

// BestIndex returns the grid position of the best candidate, or -1 before Fit.
func (g *GridSearchCV) BestIndex() int {
	return g.bestIndex_
}

// BestParams returns the parameters of the best candidate.
func (g *GridSearchCV) BestParams() map[string]interface{} {
	if g.bestIndex_ < 0 {
		return nil
	}
	return g.results_[g.bestIndex_].Params
}

// BestScore returns the mean CV score of the best candidate.
func (g *GridSearchCV) BestScore() float64 {
	if g.bestIndex_ < 0 {
		return math.NaN()
	}
	return g.results_[g.bestIndex_].MeanScore
}

// BestEstimator returns the refitted best estimator.
func (g *GridSearchCV) BestEstimator() (model.Classifier, error) {
	if g.bestEstimator_ == nil {
		return nil, errors.NewNotFittedError("GridSearchCV", "BestEstimator")
	}
	return g.bestEstimator_, nil
}
