package schematika

import "fmt"

// Config is a path-keyed bag of typed settings, generalized from the
// teacher's grammar/compiler config map to the knobs every
// interpreter subsystem needs: debug tracing, arena sizes, GC tuning,
// and pretty-printer indentation.
type Config map[string]*cfgVal

// NewConfig creates a new configuration object primed with the
// defaults every interpreter component expects to find.
func NewConfig() *Config {
	m := make(Config)
	m.SetBool("debug_flag", false)

	m.SetInt("arena.parser_stack_bytes", 64*1024)
	m.SetInt("arena.error_bytes", 16*1024)
	m.SetInt("arena.stable_bytes", 256*1024)

	m.SetInt("gc.generations", 2)
	m.SetIntSlice("gc.generation_size", []int{64 * 1024, 1024 * 1024})
	m.SetFloatSlice("gc.generation_trigger", []float64{0.75, 0.9})

	m.SetInt("printer.indent_width", 2)
	return &m
}

type cfgValType int

const (
	cfgValType_Undefined cfgValType = iota
	cfgValType_Bool
	cfgValType_Int
	cfgValType_String
	cfgValType_IntSlice
	cfgValType_FloatSlice
)

func (vt cfgValType) String() string {
	return map[cfgValType]string{
		cfgValType_Undefined:  "undefined",
		cfgValType_Bool:       "bool",
		cfgValType_Int:        "int",
		cfgValType_String:     "string",
		cfgValType_IntSlice:   "[]int",
		cfgValType_FloatSlice: "[]float64",
	}[vt]
}

type cfgVal struct {
	typ      cfgValType
	asBool   bool
	asInt    int
	asString string
	asInts   []int
	asFloats []float64
}

// assignType is mostly for preventing programming errors: a config
// path is fixed to the type of the first Set* call against it.
func (v *cfgVal) assignType(vt cfgValType) {
	if v.typ != vt && v.typ != cfgValType_Undefined {
		panic(fmt.Sprintf("can't assign `%s` to type `%s`", vt, v.typ))
	}
	v.typ = vt
}

func (v *cfgVal) checkType(vt cfgValType) {
	if v.typ != vt {
		panic(fmt.Sprintf("can't retrieve `%s` from `%s` variable", vt, v.typ))
	}
}

func (c *Config) SetBool(path string, v bool) {
	if (*c)[path] == nil {
		(*c)[path] = &cfgVal{}
	}
	(*c)[path].assignType(cfgValType_Bool)
	(*c)[path].asBool = v
}

func (c *Config) SetInt(path string, v int) {
	if (*c)[path] == nil {
		(*c)[path] = &cfgVal{}
	}
	(*c)[path].assignType(cfgValType_Int)
	(*c)[path].asInt = v
}

func (c *Config) SetString(path string, v string) {
	if (*c)[path] == nil {
		(*c)[path] = &cfgVal{}
	}
	(*c)[path].assignType(cfgValType_String)
	(*c)[path].asString = v
}

func (c *Config) SetIntSlice(path string, v []int) {
	if (*c)[path] == nil {
		(*c)[path] = &cfgVal{}
	}
	(*c)[path].assignType(cfgValType_IntSlice)
	(*c)[path].asInts = v
}

func (c *Config) SetFloatSlice(path string, v []float64) {
	if (*c)[path] == nil {
		(*c)[path] = &cfgVal{}
	}
	(*c)[path].assignType(cfgValType_FloatSlice)
	(*c)[path].asFloats = v
}

func (c *Config) GetBool(path string) bool {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_Bool)
		return val.asBool
	}
	panic(fmt.Sprintf("bool setting `%s` does not exist", path))
}

func (c *Config) GetInt(path string) int {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_Int)
		return val.asInt
	}
	panic(fmt.Sprintf("int setting `%s` does not exist", path))
}

func (c *Config) GetString(path string) string {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_String)
		return val.asString
	}
	panic(fmt.Sprintf("string setting `%s` does not exist", path))
}

func (c *Config) GetIntSlice(path string) []int {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_IntSlice)
		return val.asInts
	}
	panic(fmt.Sprintf("[]int setting `%s` does not exist", path))
}

func (c *Config) GetFloatSlice(path string) []float64 {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_FloatSlice)
		return val.asFloats
	}
	panic(fmt.Sprintf("[]float64 setting `%s` does not exist", path))
}
