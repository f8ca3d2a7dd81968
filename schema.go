package drawsheet

import "fmt"

// Canonical field names used on component datasheets. The model is asked for
// these exact keys and the parser resolves against them.
const (
	FieldPhase             = "phase"
	FieldFluid             = "fluid"
	FieldMaterialSpec      = "material_spec"
	FieldMaterialGrade     = "material_grade"
	FieldInsulation        = "insulation"
	FieldDesignTemp        = "design_temp"
	FieldDesignPressure    = "design_pressure"
	FieldOperatingTemp     = "operating_temp"
	FieldOperatingPressure = "operating_pressure"
)

// FieldSpec names one expected field. Hint carries a previously known or
// expected value shown to the model; it is never treated as ground truth.
type FieldSpec struct {
	Name string
	Hint string
}

// StandardFields returns the full datasheet field set in canonical order,
// without hints.
func StandardFields() []FieldSpec {
	return []FieldSpec{
		{Name: FieldFluid},
		{Name: FieldMaterialSpec},
		{Name: FieldMaterialGrade},
		{Name: FieldInsulation},
		{Name: FieldDesignTemp},
		{Name: FieldDesignPressure},
		{Name: FieldOperatingTemp},
		{Name: FieldOperatingPressure},
		{Name: FieldPhase},
	}
}

// ComponentSchema lists the fields expected for one component of an
// equipment item.
type ComponentSchema struct {
	Name   string
	Fields []FieldSpec
}

// EquipmentSchema is the expected shape of one equipment item's datasheet:
// identifiers plus the ordered set of components and their fields. It is
// built once per extraction run and read-only thereafter; constructors and
// accessors copy.
type EquipmentSchema struct {
	EquipmentID string
	PMTNumber   string
	Description string

	components []ComponentSchema
}

// NewEquipmentSchema builds an immutable schema for one equipment item.
// Component and field order is preserved; it drives prompt layout and the
// order of components in the final result.
func NewEquipmentSchema(equipmentID string, components ...ComponentSchema) EquipmentSchema {
	s := EquipmentSchema{EquipmentID: equipmentID}
	s.components = make([]ComponentSchema, len(components))
	for i, c := range components {
		s.components[i] = ComponentSchema{
			Name:   c.Name,
			Fields: append([]FieldSpec(nil), c.Fields...),
		}
	}
	return s
}

// WithIdentifiers returns a copy carrying the secondary reference number and
// free-text description shown to the model.
func (s EquipmentSchema) WithIdentifiers(pmtNumber, description string) EquipmentSchema {
	s.PMTNumber = pmtNumber
	s.Description = description
	return s
}

// Components returns the component list in schema order.
func (s EquipmentSchema) Components() []ComponentSchema {
	out := make([]ComponentSchema, len(s.components))
	for i, c := range s.components {
		out[i] = ComponentSchema{Name: c.Name, Fields: append([]FieldSpec(nil), c.Fields...)}
	}
	return out
}

// Component looks up one component schema by exact name.
func (s EquipmentSchema) Component(name string) (ComponentSchema, bool) {
	for _, c := range s.components {
		if c.Name == name {
			return ComponentSchema{Name: c.Name, Fields: append([]FieldSpec(nil), c.Fields...)}, true
		}
	}
	return ComponentSchema{}, false
}

// ComponentNames returns the canonical component names in schema order.
func (s EquipmentSchema) ComponentNames() []string {
	names := make([]string, len(s.components))
	for i, c := range s.components {
		names[i] = c.Name
	}
	return names
}

// FieldCount is the total number of expected fields across all components.
func (s EquipmentSchema) FieldCount() int {
	n := 0
	for _, c := range s.components {
		n += len(c.Fields)
	}
	return n
}

// fullMissing reports every expected field as unresolved. Used as the
// round-zero state and as the fallback when a round yields nothing usable.
func (s EquipmentSchema) fullMissing() MissingReport {
	m := make(MissingReport, len(s.components))
	for _, c := range s.components {
		fields := make([]string, len(c.Fields))
		for i, f := range c.Fields {
			fields[i] = f.Name
		}
		m[c.Name] = fields
	}
	return m
}

// Registry holds the schemas for one extraction run, keyed by equipment id.
// Insertion order is preserved for deterministic batch planning.
type Registry struct {
	schemas map[string]EquipmentSchema
	ids     []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]EquipmentSchema)}
}

// Add registers a schema. Re-registering an equipment id is rejected so one
// run cannot silently hold two expectations for the same item.
func (r *Registry) Add(s EquipmentSchema) error {
	if s.EquipmentID == "" {
		return fmt.Errorf("add schema: equipment id is empty")
	}
	if _, dup := r.schemas[s.EquipmentID]; dup {
		return fmt.Errorf("add schema: equipment %q already registered", s.EquipmentID)
	}
	r.schemas[s.EquipmentID] = s
	r.ids = append(r.ids, s.EquipmentID)
	return nil
}

// Get returns the schema for an equipment id.
func (r *Registry) Get(equipmentID string) (EquipmentSchema, bool) {
	s, ok := r.schemas[equipmentID]
	return s, ok
}

// IDs returns the registered equipment ids in insertion order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.ids...)
}

// Len reports the number of registered schemas.
func (r *Registry) Len() int { return len(r.ids) }
