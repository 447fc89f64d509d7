package referencedata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rxguard/interactions-api/logging"
	"github.com/rxguard/interactions-api/referencedata/entities"
)

// Reference dataset file names, expected inside the configured data directory.
const (
	DrugsFile             = "drugs.json"
	InteractionsFile      = "interactions.json"
	ContraindicationsFile = "contraindications.json"
	CrossAllergiesFile    = "cross_allergies.json"
)

// DataLoadError reports malformed or inconsistent reference data. It is fatal
// at startup: the engine must not run on partially loaded indices.
type DataLoadError struct {
	File string
	Err  error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("reference data load failed (%s): %v", e.File, e.Err)
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}

type drugsFile struct {
	Drugs   []entities.DrugReference `json:"drugs"`
	Classes []entities.DrugClass     `json:"classes"`
}

type interactionsFile struct {
	Interactions []entities.InteractionRule `json:"interactions"`
}

type contraindicationsFile struct {
	Contraindications []entities.ContraindicationRule `json:"contraindications"`
}

type crossAllergiesFile struct {
	Groups []entities.CrossAllergyGroup `json:"groups"`
}

// FileLoader reads the four JSON datasets from a directory and builds a Store.
type FileLoader struct{}

// NewLoader creates a file-based reference data loader.
func NewLoader() *FileLoader {
	return &FileLoader{}
}

// Load parses the four dataset files concurrently, then validates and indexes
// them. Any parse or consistency failure returns a *DataLoadError and no
// Store.
func (l *FileLoader) Load(dir string) (*Store, error) {
	var (
		drugs   drugsFile
		inter   interactionsFile
		contra  contraindicationsFile
		allergy crossAllergiesFile
	)

	var wg sync.WaitGroup
	errs := make([]*DataLoadError, 4)

	wg.Add(4)
	go func() {
		defer wg.Done()
		errs[0] = decodeFile(dir, DrugsFile, &drugs)
	}()
	go func() {
		defer wg.Done()
		errs[1] = decodeFile(dir, InteractionsFile, &inter)
	}()
	go func() {
		defer wg.Done()
		errs[2] = decodeFile(dir, ContraindicationsFile, &contra)
	}()
	go func() {
		defer wg.Done()
		errs[3] = decodeFile(dir, CrossAllergiesFile, &allergy)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	store, err := Build(drugs.Drugs, drugs.Classes, inter.Interactions, contra.Contraindications, allergy.Groups)
	if err != nil {
		return nil, &DataLoadError{File: dir, Err: err}
	}

	logging.Info("Reference data loaded",
		"dir", dir,
		"drugs", len(drugs.Drugs),
		"classes", len(drugs.Classes),
		"interactions", len(inter.Interactions),
		"contraindications", len(contra.Contraindications),
		"cross_allergy_groups", len(allergy.Groups),
	)

	return store, nil
}

func decodeFile(dir, name string, v any) *DataLoadError {
	path := filepath.Join(dir, name)
	f, err := os.Open(path)
	if err != nil {
		return &DataLoadError{File: name, Err: err}
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &DataLoadError{File: name, Err: err}
	}
	return nil
}
