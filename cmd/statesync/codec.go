package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/statesync/internal/errors"
	"github.com/vango-dev/statesync/pkg/urlcodec"
	"github.com/vango-dev/statesync/pkg/value"
)

// codecFlags select the namespace and template, either directly or from a
// consumer in the config.
type codecFlags struct {
	consumer  string
	namespace string
	template  string
}

func (f *codecFlags) register(cmd *cobra.Command, withTemplate bool) {
	cmd.Flags().StringVar(&f.consumer, "consumer", "", "Consumer from statesync.json supplying namespace and template")
	cmd.Flags().StringVarP(&f.namespace, "namespace", "n", "", "URL namespace prefix")
	if withTemplate {
		cmd.Flags().StringVarP(&f.template, "template", "t", "", "Template state as JSON")
	}
}

// resolve returns the namespace and template. The template is nil when
// none was given.
func (f *codecFlags) resolve(flags *globalFlags) (string, *value.Object, error) {
	ns := f.namespace
	var tmpl *value.Object

	if f.consumer != "" {
		cfg, err := loadConfig(flags)
		if err != nil {
			return "", nil, err
		}
		c, ok := findConsumer(cfg, f.consumer)
		if !ok {
			return "", nil, fmt.Errorf("no consumer %q in config", f.consumer)
		}
		if ns == "" {
			ns = c.Namespace
		}
		tmpl = c.Template
	}
	if f.template != "" {
		obj, err := parseObject(f.template)
		if err != nil {
			return "", nil, fmt.Errorf("template: %w", err)
		}
		tmpl = obj
	}
	if ns == "" {
		return "", nil, fmt.Errorf("a namespace is required (--namespace or --consumer)")
	}
	return ns, tmpl, nil
}

// readArg returns args[0], or stdin when it is "-" or missing.
func readArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func parseObject(text string) (*value.Object, error) {
	v, err := value.ParseString(text)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*value.Object)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %s", value.KindOf(v))
	}
	return obj, nil
}

func encodeCmd(flags *globalFlags) *cobra.Command {
	var cf codecFlags

	cmd := &cobra.Command{
		Use:   "encode [state-json|-]",
		Short: "Encode state JSON as URL query parameters",
		Long: `Encode a state object as namespaced query parameters.

Empty strings and nulls are omitted. Arrays and objects are written
as percent-encoded JSON.

Examples:
  statesync encode -n thread '{"diameter":12,"metric":true}'
  echo '{"grade":"H7"}' | statesync encode --consumer tolerance`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, _, err := cf.resolve(flags)
			if err != nil {
				return err
			}
			text, err := readArg(cmd, args)
			if err != nil {
				return err
			}
			state, err := parseObject(text)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), urlcodec.Encode(state, ns).Encode())
			return nil
		},
	}
	cf.register(cmd, false)
	return cmd
}

func decodeCmd(flags *globalFlags) *cobra.Command {
	var (
		cf    codecFlags
		merge bool
	)

	cmd := &cobra.Command{
		Use:   "decode [query|url|-]",
		Short: "Decode URL query parameters into state JSON",
		Long: `Decode the namespaced query parameters of a query string or URL
against a template. Parameters for fields outside the template, or
whose values do not fit the template's shape, are skipped.

Examples:
  statesync decode -n thread -t '{"diameter":0}' 'thread_diameter=12'
  statesync decode --consumer thread --merge 'https://example.com/calc?thread_diameter=12'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, tmpl, err := cf.resolve(flags)
			if err != nil {
				return err
			}
			if tmpl == nil {
				return fmt.Errorf("a template is required (--template or --consumer)")
			}
			text, err := readArg(cmd, args)
			if err != nil {
				return err
			}
			params, err := parseQuery(text)
			if err != nil {
				return err
			}

			state, skips := urlcodec.DecodeWithSkips(params, tmpl, ns)
			for _, s := range skips {
				code := "S003"
				if s.Unknown {
					code = "S004"
				}
				warn("skipped %s", errors.New(code).WithKey(ns).WithField(s.Field).FormatCompact())
			}
			if merge {
				state = tmpl.Merge(state)
			}

			data, err := value.Marshal(state)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
	cf.register(cmd, true)
	cmd.Flags().BoolVar(&merge, "merge", false, "Print the full state: template defaults with decoded fields applied")
	return cmd
}

// parseQuery accepts a bare query string, with or without "?", or a URL.
func parseQuery(text string) (url.Values, error) {
	if strings.Contains(text, "://") {
		u, err := url.Parse(text)
		if err != nil {
			return nil, err
		}
		return u.Query(), nil
	}
	return url.ParseQuery(strings.TrimPrefix(text, "?"))
}

func shareCmd(flags *globalFlags) *cobra.Command {
	var (
		cf   codecFlags
		base string
	)

	cmd := &cobra.Command{
		Use:   "share [state-json|-]",
		Short: "Build a shareable URL for a state",
		Long: `Build an absolute URL carrying a state under a namespace. The
query of the base URL is replaced.

Examples:
  statesync share -n thread --base https://tools.example.com/calc/thread '{"diameter":12}'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ns, tmpl, err := cf.resolve(flags)
			if err != nil {
				return err
			}
			baseURL, err := url.Parse(base)
			if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
				return fmt.Errorf("--base must be an absolute URL")
			}
			text, err := readArg(cmd, args)
			if err != nil {
				return err
			}
			state, err := parseObject(text)
			if err != nil {
				return err
			}
			if tmpl != nil {
				state = tmpl.Merge(filterFields(state, tmpl))
			}
			fmt.Fprintln(cmd.OutOrStdout(), urlcodec.ShareableURL(baseURL, state, ns))
			return nil
		},
	}
	cf.register(cmd, true)
	cmd.Flags().StringVar(&base, "base", "", "Base URL (origin and path)")
	return cmd
}

// filterFields drops fields of state that tmpl does not have.
func filterFields(state, tmpl *value.Object) *value.Object {
	out := value.NewObject()
	state.Range(func(k string, v value.Value) bool {
		if tmpl.Has(k) {
			out.Set(k, v)
		}
		return true
	})
	return out
}
