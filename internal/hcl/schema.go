package hcl

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block a file may hold.
type fileRoot struct {
	Models   []*modelBlock   `hcl:"model,block"`
	Features []*featureBlock `hcl:"feature,block"`
	Remain   hcl.Body        `hcl:",remain"`
}

// modelBlock is one `model` block of a pipeline file.
type modelBlock struct {
	Name        string            `hcl:"name,label"`
	Input       string            `hcl:"input,optional"`
	GroupBy     []string          `hcl:"group_by,optional"`
	Outputs     []string          `hcl:"outputs"`
	KeyColumns  []string          `hcl:"key_columns,optional"`
	ColumnMap   map[string]string `hcl:"column_map,optional"`
	ColumnTypes hcl.Expression    `hcl:"column_types,optional"`
	Globals     hcl.Expression    `hcl:"globals,optional"`
	Save        bool              `hcl:"save,optional"`
	Params      []*paramBlock     `hcl:"param,block"`
}

// paramBlock holds the argument values of one feature.
type paramBlock struct {
	Feature string   `hcl:"feature,label"`
	Body    hcl.Body `hcl:",remain"`
}

// featureBlock is one `feature` block of a manifest.
type featureBlock struct {
	Name        string         `hcl:"name,label"`
	Description string         `hcl:"description,optional"`
	Kind        string         `hcl:"kind,optional"`
	Category    string         `hcl:"category,optional"`
	Inputs      []string       `hcl:"inputs,optional"`
	Outputs     []string       `hcl:"outputs,optional"`
	DependsOn   []string       `hcl:"depends_on,optional"`
	Params      []string       `hcl:"params,optional"`
	Tags        []string       `hcl:"tags,optional"`
	Version     string         `hcl:"version,optional"`
	DType       hcl.Expression `hcl:"dtype,optional"`
	Routine     string         `hcl:"routine"`
}
