// Package pipeline wires the training stages together and owns the artifact
// bundle that inference loads.
//
// Stage order: load, clean, encode categoricals and target, fit the scaler
// on the numeric prefix, rebalance with SMOTE, split, grid search with
// cross validation, refit, score on the held-out split, persist.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/nggra/obesity/config"
	"github.com/nggra/obesity/core/model"
	"github.com/nggra/obesity/dataset"
	"github.com/nggra/obesity/ensemble"
	"github.com/nggra/obesity/metrics"
	"github.com/nggra/obesity/model_selection"
	"github.com/nggra/obesity/oversampling"
	"github.com/nggra/obesity/pkg/errors"
	"github.com/nggra/obesity/pkg/log"
	"github.com/nggra/obesity/preprocessing"
	"github.com/nggra/obesity/report"
)

// Result is a fitted, not yet persisted, training run.
type Result struct {
	Bundle  *Bundle
	Summary *report.Summary
}

// Encoded is the cleaned dataset turned into a feature matrix: numeric
// columns standardised, categorical columns replaced by their codes.
type Encoded struct {
	X      *mat.Dense
	Y      []int
	Scaler *preprocessing.StandardScaler
	Maps   []preprocessing.EncodingMap
}

// Encode fits the categorical encoders, the target encoder and the scaler
// on cleaned and returns the [numeric ++ codes] matrix with target codes.
// Target codes follow dataset.Labels.
func Encode(cleaned *dataset.CleanedDataset) (*Encoded, error) {
	n := cleaned.Len()
	if n == 0 {
		return nil, errors.NewTrainingError("Encode", "no rows to encode", errors.ErrEmptyData)
	}

	target := preprocessing.NewLabelEncoderWithCategories(dataset.TargetColumn, dataset.Labels)
	y, err := target.FitTransform(cleaned.Targets())
	if err != nil {
		return nil, errors.NewTrainingError("Encode", "target", err)
	}
	if len(target.Classes) != len(dataset.Labels) {
		return nil, errors.NewTrainingError("Encode", "target holds values outside the label table", nil)
	}

	numeric := mat.NewDense(n, dataset.NumNumeric, nil)
	for j := 0; j < dataset.NumNumeric; j++ {
		numeric.SetCol(j, cleaned.Column(j))
	}
	scaler := preprocessing.NewStandardScalerDefault()
	scaled, err := scaler.FitTransform(numeric)
	if err != nil {
		return nil, errors.NewTrainingError("Encode", "scaler", err)
	}

	X := mat.NewDense(n, dataset.NumFeatures, nil)
	X.Slice(0, n, 0, dataset.NumNumeric).(*mat.Dense).Copy(scaled)

	maps := make([]preprocessing.EncodingMap, dataset.NumCategorical)
	for j, col := range dataset.CategoricalColumns {
		enc := preprocessing.NewLabelEncoderWithCategories(col.Name, col.Values)
		codes, err := enc.FitTransform(cleaned.CategoricalColumn(j))
		if err != nil {
			return nil, errors.NewTrainingError("Encode", "column "+col.Name, err)
		}
		for i, c := range codes {
			X.Set(i, dataset.NumNumeric+j, float64(c))
		}
		maps[j] = enc.Map()
	}
	return &Encoded{X: X, Y: y, Scaler: scaler, Maps: maps}, nil
}

// Fit runs every stage on frame and returns the fitted bundle with its
// diagnostics. Nothing is written to disk.
func Fit(ctx context.Context, frame *dataset.Frame, cfg config.Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := log.GetLoggerWithName("pipeline.train")
	start := time.Now()

	cleaned, err := dataset.Clean(frame, dataset.WithIQRFactor(cfg.IQRFactor))
	if err != nil {
		return nil, err
	}

	enc, err := Encode(cleaned)
	if err != nil {
		return nil, err
	}
	logger.Info("features encoded",
		log.PhaseKey, log.PhasePreprocessing,
		log.SamplesKey, cleaned.Len(),
		log.FeaturesKey, dataset.NumFeatures,
	)

	smote := oversampling.NewSMOTE(
		oversampling.WithKNeighbors(cfg.SMOTENeighbors),
		oversampling.WithRandomState(cfg.Seed),
	)
	Xb, yb, err := smote.FitResample(enc.X, enc.Y)
	if err != nil {
		return nil, err
	}

	rows, _ := Xb.Dims()
	trainIdx, testIdx, err := model_selection.TrainTestSplit(rows, cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, errors.NewTrainingError("Fit", "train/test split", err)
	}
	Xtrain := model_selection.TakeRows(Xb, trainIdx)
	ytrain := model_selection.TakeLabels(yb, trainIdx)
	Xtest := model_selection.TakeRows(Xb, testIdx)
	ytest := model_selection.TakeLabels(yb, testIdx)

	search := model_selection.NewGridSearchCV(
		func() model.Classifier {
			return ensemble.NewRandomForestClassifier(
				ensemble.WithRandomState(cfg.Seed),
				ensemble.WithNJobs(1),
			)
		},
		cfg.Grid.ParamGrid(),
		model_selection.WithCV(model_selection.NewStratifiedKFold(cfg.CVFolds, false, 0)),
		model_selection.WithNJobs(cfg.Workers),
	)
	if err := search.Fit(ctx, Xtrain, model_selection.LabelColumn(ytrain)); err != nil {
		return nil, err
	}
	best, err := search.BestEstimator()
	if err != nil {
		return nil, errors.NewTrainingError("Fit", "no refitted estimator", err)
	}
	forest := best.(*ensemble.RandomForestClassifier)
	logger.Info("model selected",
		log.PhaseKey, log.PhaseValidation,
		log.HyperParamsKey, search.BestParams(),
		log.CVScoreKey, search.BestScore(),
	)

	pred, err := forest.Predict(Xtest)
	if err != nil {
		return nil, errors.NewTrainingError("Fit", "held-out prediction", err)
	}
	yPred := make([]int, len(ytest))
	for i := range yPred {
		yPred[i] = int(pred.At(i, 0))
	}
	testReport, err := metrics.NewReport(ytest, yPred, dataset.Labels)
	if err != nil {
		return nil, errors.NewTrainingError("Fit", "held-out metrics", err)
	}

	bundleID := uuid.NewString()
	contract := NewContract(bundleID, cleaned, enc.Maps)
	contract.BestParams = search.BestParams()
	contract.CVScore = search.BestScore()
	contract.TestAccuracy = testReport.Accuracy

	summary := &report.Summary{
		BundleID:     bundleID,
		Clean:        cleaned.Report,
		Synthetic:    smote.SyntheticCounts(),
		TrainRows:    len(trainIdx),
		TestRows:     len(testIdx),
		Candidates:   search.Results(),
		BestIndex:    search.BestIndex(),
		Test:         testReport,
		FeatureNames: dataset.FeatureNames(),
		Importances:  forest.FeatureImportances(),
	}

	logger.Info("training finished",
		log.PhaseKey, log.PhaseTesting,
		log.BundleIDKey, bundleID,
		log.HyperParamsKey, contract.BestParams,
		log.CVScoreKey, contract.CVScore,
		log.AccuracyKey, testReport.Accuracy,
		log.PrecisionKey, testReport.Macro.Precision,
		log.RecallKey, testReport.Macro.Recall,
		log.F1MacroKey, testReport.Macro.F1,
		log.F1WeightedKey, testReport.Weighted.F1,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	return &Result{
		Bundle:  &Bundle{Contract: contract, Scaler: enc.Scaler, Model: forest},
		Summary: summary,
	}, nil
}

// Train loads cfg.DataPath, fits the pipeline and persists the bundle and
// report under cfg.OutputDir. Artifacts are only written once every stage
// succeeded.
func Train(ctx context.Context, cfg config.Config) (*Result, error) {
	logger := log.GetLoggerWithName("pipeline.train")
	logger.Info("training started",
		log.PathKey, cfg.DataPath,
		log.ArtifactDirKey, cfg.OutputDir,
		log.RandomSeedKey, cfg.Seed,
	)

	frame, err := dataset.LoadFile(cfg.DataPath)
	if err != nil {
		return nil, err
	}
	res, err := Fit(ctx, frame, cfg)
	if err != nil {
		return nil, err
	}
	if err := Save(cfg.OutputDir, res.Bundle); err != nil {
		return nil, err
	}
	if err := res.Summary.SaveText(filepath.Join(cfg.OutputDir, ReportFile)); err != nil {
		return nil, err
	}
	logger.Debug("training report", "report", res.Summary.String())
	if cfg.Plots {
		paths, err := res.Summary.SaveCharts(cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		logger.Info("charts written", log.ArtifactDirKey, cfg.OutputDir, "files", paths)
	}
	return res, nil
}
