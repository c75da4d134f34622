// Package protocol scores emergency field protocols against free-text
// observations and checks protocol medications for allergy, interaction and
// vitals conflicts. Catalogs load once and are immutable afterwards.
package protocol

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/triage-edge-server/internal/domain"
)

//go:embed data/protocols.json
var defaultProtocols []byte

//go:embed data/drugs.json
var defaultDrugs []byte

// Catalog holds the loaded protocol and drug datasets.
type Catalog struct {
	Protocols []domain.Protocol
	Drugs     []domain.Drug

	defaultProtocol *domain.Protocol
	drugsByName     map[string]*domain.Drug
}

type protocolFile struct {
	Version   string            `json:"version"`
	DefaultID string            `json:"default_id"`
	Protocols []domain.Protocol `json:"protocols"`
}

type drugFile struct {
	Version string        `json:"version"`
	Drugs   []domain.Drug `json:"drugs"`
}

// LoadCatalog reads protocols.json and drugs.json from dir, falling back to
// the compiled-in datasets for any file the directory does not provide.
func LoadCatalog(logger *logrus.Logger, dir string) (*Catalog, error) {
	protoRaw := readOrDefault(logger, filepath.Join(dir, "protocols.json"), defaultProtocols)
	drugRaw := readOrDefault(logger, filepath.Join(dir, "drugs.json"), defaultDrugs)

	var pf protocolFile
	if err := json.Unmarshal(protoRaw, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse protocol catalog: %w", err)
	}
	var df drugFile
	if err := json.Unmarshal(drugRaw, &df); err != nil {
		return nil, fmt.Errorf("failed to parse drug catalog: %w", err)
	}
	if len(pf.Protocols) == 0 {
		return nil, fmt.Errorf("protocol catalog is empty")
	}

	c := &Catalog{
		Protocols:   pf.Protocols,
		Drugs:       df.Drugs,
		drugsByName: make(map[string]*domain.Drug, len(df.Drugs)),
	}
	for i := range c.Protocols {
		if c.Protocols[i].ID == pf.DefaultID {
			c.defaultProtocol = &c.Protocols[i]
		}
	}
	if c.defaultProtocol == nil {
		c.defaultProtocol = &c.Protocols[len(c.Protocols)-1]
	}
	for i := range c.Drugs {
		c.drugsByName[normalizeDrugName(c.Drugs[i].Name)] = &c.Drugs[i]
	}

	logger.WithFields(logrus.Fields{
		"protocols":        len(c.Protocols),
		"drugs":            len(c.Drugs),
		"protocol_version": pf.Version,
		"drug_version":     df.Version,
	}).Info("Loaded protocol and drug catalogs")

	return c, nil
}

// DefaultProtocol is the protocol returned when nothing in the catalog
// matches an observation.
func (c *Catalog) DefaultProtocol() *domain.Protocol {
	return c.defaultProtocol
}

// FindDrug resolves a free-text drug name against the catalog by canonical
// name or brand alias.
func (c *Catalog) FindDrug(name string) *domain.Drug {
	if d, ok := c.drugsByName[normalizeDrugName(name)]; ok {
		return d
	}
	for i := range c.Drugs {
		if c.Drugs[i].MatchesName(name) {
			return &c.Drugs[i]
		}
	}
	return nil
}

func readOrDefault(logger *logrus.Logger, path string, fallback []byte) []byte {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WithError(err).WithField("path", path).Warn("Catalog file unreadable, using built-in dataset")
		}
		return fallback
	}
	logger.WithField("path", path).Debug("Loaded catalog override")
	return data
}
