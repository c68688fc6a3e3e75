// Package obesity trains and serves a random forest that predicts a person's
// obesity level from eating habits and physical condition.
//
// The module is organised the way a scikit-learn pipeline is, with one Go
// package per stage:
//
//   - dataset: CSV loading, duplicate removal, mode imputation and the
//     cascading IQR outlier filter
//   - preprocessing: LabelEncoder for categorical columns and StandardScaler
//     for the numeric prefix
//   - oversampling: SMOTE class rebalancing
//   - tree and ensemble: CART decision trees and the RandomForestClassifier
//   - model_selection: train/test split, stratified k-fold and GridSearchCV
//   - metrics: accuracy, per-class precision, recall and F1, confusion matrix
//   - pipeline: the training run and the persisted artifact bundle
//   - inference: Predict(record) over a loaded bundle
//   - report: text summary and PNG charts of a training run
//
// # Training
//
//	cfg := config.Default()
//	cfg.DataPath = "ObesityDataSet.csv"
//	res, err := pipeline.Train(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Summary)
//
// Train writes scaler.gob, model.gob and contract.yaml into cfg.OutputDir.
// The three files share one bundle ID and are only loaded together.
//
// # Inference
//
//	p, err := inference.Load("artifacts")
//	if err != nil {
//	    log.Fatal(err) // StartupError
//	}
//	label, err := p.Predict(rec)
//
// A record with a missing value, a number outside its column's domain or a
// category never seen in training is rejected with a ValidationError that
// lists every offending field.
//
// # Error handling
//
// Errors carry stack traces from cockroachdb/errors and are classified by
// kind (DataError, TrainingError, StartupError, ValidationError, ...):
//
//	var ve *errors.ValidationError
//	if errors.As(err, &ve) {
//	    fmt.Println(ve.FieldNames())
//	}
//
// # Logging
//
// All packages log through pkg/log, a small interface over zerolog:
//
//	if err := log.SetupLogger("debug", "json"); err != nil {
//	    ...
//	}
//
// The command in cmd/obesity wraps both stages:
//
//	obesity train --data ObesityDataSet.csv --out artifacts --plots
//	obesity predict --artifacts artifacts --record person.yaml --detail
package obesity
