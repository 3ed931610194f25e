package kong

import upstream "github.com/alecthomas/kong"

// This package layers a few project-specific additions (ExitCoder, the W/
// BindW translation hook, interpolation helpers) on top of the upstream
// parser; the parser itself — grammar reflection, struct-tag handling, help
// rendering — is upstream's, aliased here so call sites only ever import
// this package.

type (
	Kong          = upstream.Kong
	Context       = upstream.Context
	Option        = upstream.Option
	Vars          = upstream.Vars
	HelpOptions   = upstream.HelpOptions
	DecodeContext = upstream.DecodeContext
	MapperFunc    = upstream.MapperFunc
)

func New(grammar any, options ...Option) (*Kong, error) {
	return upstream.New(grammar, options...)
}

func Name(name string) Option                 { return upstream.Name(name) }
func Description(help string) Option          { return upstream.Description(help) }
func UsageOnError() Option                    { return upstream.UsageOnError() }
func ConfigureHelp(options HelpOptions) Option { return upstream.ConfigureHelp(options) }
func NamedMapper(name string, mapper upstream.Mapper) Option {
	return upstream.NamedMapper(name, mapper)
}
