package log

// Standard attribute keys. They follow a dotted, hierarchical naming scheme so
// log queries can filter by prefix ("data.", "metrics.", "artifact.").

// Model and operation context.
const (
	ModelNameKey = "model.name"
	OperationKey = "ml.operation"
	ComponentKey = "ml.component"
	PhaseKey     = "ml.phase"
)

// Data shape and cleaning.
const (
	SamplesKey     = "data.samples"
	FeaturesKey    = "data.features"
	ClassesKey     = "data.classes"
	ColumnKey      = "data.column"
	RowsInKey      = "data.rows_in"
	RowsOutKey     = "data.rows_out"
	RowsRemovedKey = "data.rows_removed"
	PathKey        = "data.path"
)

// Performance and metrics.
const (
	DurationMsKey  = "perf.duration_ms"
	WorkersKey     = "perf.workers"
	AccuracyKey    = "metrics.accuracy"
	CVScoreKey     = "metrics.cv_accuracy"
	CVStdKey       = "metrics.cv_std"
	PrecisionKey   = "metrics.precision_macro"
	RecallKey      = "metrics.recall_macro"
	F1MacroKey     = "metrics.f1_macro"
	F1WeightedKey  = "metrics.f1_weighted"
	CandidateKey   = "cv.candidate"
	CandidatesKey  = "cv.candidates"
	FoldsKey       = "cv.folds"
	PredictionKey  = "preds.label"
	ConfidenceKey  = "preds.confidence"
	ClassIndexKey  = "preds.class"
	SyntheticKey   = "smote.synthetic"
	NeighborsKey   = "smote.k_neighbors"
	HyperParamsKey = "model.hyperparams"
	RandomSeedKey  = "config.random_seed"
)

// Artifacts.
const (
	BundleIDKey    = "artifact.bundle_id"
	ArtifactDirKey = "artifact.dir"
)

// ErrorFieldKey lists the rejected fields of a record.
const ErrorFieldKey = "error.fields"

// Standard values.
const (
	OperationFit      = "fit"
	OperationPredict  = "predict"
	OperationClean    = "clean"
	OperationResample = "resample"
	OperationSearch   = "grid_search"
	OperationPersist  = "persist"
	OperationLoad     = "load"

	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
