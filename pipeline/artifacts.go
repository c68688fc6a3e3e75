package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/nggra/obesity/core/model"
	"github.com/nggra/obesity/ensemble"
	"github.com/nggra/obesity/pkg/errors"
	"github.com/nggra/obesity/pkg/log"
	"github.com/nggra/obesity/preprocessing"
)

// Artifact file names inside the output directory.
const (
	ScalerFile   = "scaler.gob"
	ModelFile    = "model.gob"
	ContractFile = "contract.yaml"
	ReportFile   = "report.txt"
)

// ScalerBlob is the gob image of scaler.gob.
type ScalerBlob struct {
	BundleID     string
	FeatureNames []string
	Scaler       *preprocessing.StandardScaler
}

// ModelBlob is the gob image of model.gob.
type ModelBlob struct {
	BundleID     string
	FeatureNames []string
	Forest       *ensemble.RandomForestClassifier
}

// Bundle is everything inference needs, bound together by one bundle ID.
type Bundle struct {
	Contract *Contract
	Scaler   *preprocessing.StandardScaler
	Model    *ensemble.RandomForestClassifier
}

// Check verifies that the three parts belong together.
func (b *Bundle) Check() error {
	if b.Contract == nil || b.Scaler == nil || b.Model == nil {
		return errors.NewStartupError("Bundle.Check", "incomplete bundle", nil)
	}
	if err := b.Contract.Check(); err != nil {
		return errors.NewStartupError("Bundle.Check", "contract does not match the schema", err)
	}
	if !b.Scaler.IsFitted() || !b.Model.IsFitted() {
		return errors.NewStartupError("Bundle.Check", "scaler or model is not fitted", nil)
	}
	if b.Scaler.NFeatures != len(b.Contract.Numeric) {
		return errors.NewStartupError("Bundle.Check",
			fmt.Sprintf("scaler expects %d features, contract lists %d numeric columns", b.Scaler.NFeatures, len(b.Contract.Numeric)), nil)
	}
	if want := len(b.Contract.FeatureNames()); b.Model.NFeatures() != want {
		return errors.NewStartupError("Bundle.Check",
			fmt.Sprintf("model expects %d features, contract lists %d", b.Model.NFeatures(), want), nil)
	}
	return nil
}

// Save writes the bundle into dir. All three files are encoded into
// temporary files first and only renamed into place once every encoding
// succeeded. The contract is renamed last. If a rename fails, the files
// already replaced get their previous content back, so dir holds either the
// old bundle or the new one.
func Save(dir string, b *Bundle) (err error) {
	logger := log.GetLoggerWithName("pipeline.artifacts")
	if err := b.Check(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create artifact directory %s", dir)
	}

	names := b.Contract.FeatureNames()
	var temps []string
	defer func() {
		if err != nil {
			for _, t := range temps {
				os.Remove(t)
			}
		}
	}()

	scalerTmp, err := model.WriteTemp(&ScalerBlob{BundleID: b.Contract.BundleID, FeatureNames: names[:len(b.Contract.Numeric)], Scaler: b.Scaler}, dir, ScalerFile)
	if err != nil {
		return errors.Wrap(err, "scaler")
	}
	temps = append(temps, scalerTmp)

	modelTmp, err := model.WriteTemp(&ModelBlob{BundleID: b.Contract.BundleID, FeatureNames: names, Forest: b.Model}, dir, ModelFile)
	if err != nil {
		return errors.Wrap(err, "model")
	}
	temps = append(temps, modelTmp)

	contractTmp, err := model.WriteTempFunc(dir, ContractFile, b.Contract.WriteYAML)
	if err != nil {
		return errors.Wrap(err, "contract")
	}
	temps = append(temps, contractTmp)

	if err := commit(dir, temps, []string{ScalerFile, ModelFile, ContractFile}); err != nil {
		return err
	}

	logger.Info("artifacts saved",
		log.OperationKey, log.OperationPersist,
		log.ArtifactDirKey, dir,
		log.BundleIDKey, b.Contract.BundleID,
	)
	return nil
}

// rename is replaced in tests to simulate a failing filesystem.
var rename = os.Rename

type placed struct {
	target string
	backup string
}

// commit moves each staged file onto its target in order. Existing targets
// are moved aside first and restored when a later move fails.
func commit(dir string, temps, targets []string) error {
	var done []placed
	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			if done[i].backup == "" {
				os.Remove(done[i].target)
				continue
			}
			rename(done[i].backup, done[i].target)
		}
	}

	for i, tmp := range temps {
		target := filepath.Join(dir, targets[i])
		backup := ""
		if _, err := os.Stat(target); err == nil {
			backup = tmp + ".prev"
			if err := rename(target, backup); err != nil {
				rollback()
				return errors.Wrapf(err, "failed to move previous %s aside", targets[i])
			}
		}
		if err := rename(tmp, target); err != nil {
			if backup != "" {
				rename(backup, target)
			}
			rollback()
			return errors.Wrapf(err, "failed to move %s into place", targets[i])
		}
		done = append(done, placed{target: target, backup: backup})
	}

	for _, p := range done {
		if p.backup != "" {
			os.Remove(p.backup)
		}
	}
	return nil
}

// Load reads a bundle written by Save. Any missing, unreadable or
// mismatched part is a StartupError.
func Load(dir string) (*Bundle, error) {
	contract, err := readContractFile(filepath.Join(dir, ContractFile))
	if err != nil {
		return nil, errors.NewStartupError("pipeline.Load", "cannot read "+ContractFile, err)
	}

	var scaler ScalerBlob
	if err := model.LoadModel(&scaler, filepath.Join(dir, ScalerFile)); err != nil {
		return nil, errors.NewStartupError("pipeline.Load", "cannot read "+ScalerFile, err)
	}
	var forest ModelBlob
	if err := model.LoadModel(&forest, filepath.Join(dir, ModelFile)); err != nil {
		return nil, errors.NewStartupError("pipeline.Load", "cannot read "+ModelFile, err)
	}

	if scaler.BundleID != contract.BundleID || forest.BundleID != contract.BundleID {
		return nil, errors.NewStartupError("pipeline.Load",
			fmt.Sprintf("bundle ID mismatch: contract %s, scaler %s, model %s", contract.BundleID, scaler.BundleID, forest.BundleID), nil)
	}
	names := contract.FeatureNames()
	if !slices.Equal(forest.FeatureNames, names) || !slices.Equal(scaler.FeatureNames, names[:len(contract.Numeric)]) {
		return nil, errors.NewStartupError("pipeline.Load", "feature names differ between artifacts", nil)
	}

	b := &Bundle{Contract: contract, Scaler: scaler.Scaler, Model: forest.Forest}
	if err := b.Check(); err != nil {
		return nil, err
	}
	log.GetLoggerWithName("pipeline.artifacts").Info("artifacts loaded",
		log.OperationKey, log.OperationLoad,
		log.ArtifactDirKey, dir,
		log.BundleIDKey, contract.BundleID,
	)
	return b, nil
}

func readContractFile(path string) (*Contract, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	return ReadContract(f)
}
