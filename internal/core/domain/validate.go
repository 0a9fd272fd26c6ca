package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ValidateMaterial checks the invariants every stored material holds.
func ValidateMaterial(m Material) error {
	const op = "validate material"
	if strings.TrimSpace(m.Name) == "" {
		return WrapError(ErrValidation, op, errors.New("name is required"))
	}
	if err := nonNegative("quantity", m.Quantity); err != nil {
		return WrapError(ErrValidation, op, err)
	}
	if err := nonNegative("price", m.Price); err != nil {
		return WrapError(ErrValidation, op, err)
	}
	return nil
}

// ApplyMaterialPatch returns m with the patch applied and validated.
func ApplyMaterialPatch(m Material, p MaterialPatch) (Material, error) {
	if p.Name != nil {
		m.Name = *p.Name
	}
	if p.Quantity != nil {
		m.Quantity = *p.Quantity
	}
	if p.Unit != nil {
		m.Unit = *p.Unit
	}
	if p.Price != nil {
		m.Price = *p.Price
	}
	if p.Supplier != nil {
		m.Supplier = p.Supplier
	}
	if p.ProjectID != nil {
		m.ProjectID = p.ProjectID
	}
	if p.Category != nil {
		m.Category = *p.Category
	}
	if p.SourceFile != nil {
		m.SourceFile = p.SourceFile
	}
	return m, ValidateMaterial(m)
}

func ValidateProject(p Project) error {
	const op = "validate project"
	if strings.TrimSpace(p.Name) == "" {
		return WrapError(ErrValidation, op, errors.New("name is required"))
	}
	if !p.Status.Valid() {
		return WrapError(ErrValidation, op, fmt.Errorf("unknown status %q", p.Status))
	}
	if p.Progress < 0 || p.Progress > 100 {
		return WrapError(ErrValidation, op, fmt.Errorf("progress %d outside 0..100", p.Progress))
	}
	return nil
}

func ApplyProjectPatch(p Project, patch ProjectPatch) (Project, error) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.Progress != nil {
		p.Progress = *patch.Progress
	}
	if patch.Deadline != nil {
		p.Deadline = patch.Deadline
	}
	if patch.Description != nil {
		p.Description = patch.Description
	}
	return p, ValidateProject(p)
}

func nonNegative(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be finite", field)
	}
	if v < 0 {
		return fmt.Errorf("%s must be >= 0", field)
	}
	return nil
}
