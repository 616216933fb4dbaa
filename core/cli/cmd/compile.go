package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/infrastructure/gateway"
	"github.com/dataask/dataask/core/logger"
	"github.com/dataask/dataask/core/query/compiler"
	"github.com/dataask/dataask/core/query/params"
)

var (
	compileParams  string
	compileDialect string
)

var compileCmd = &cobra.Command{
	Use:   "compile <definition.json>",
	Short: "Compile a query definition to SQL",
	Long: `Compile a query definition to SQL without running it.

Parameters are substituted before compilation. With --dialect the filter
values are printed as bound arguments in that dialect's placeholder style
instead of being inlined.`,
	Args:          cobra.ExactArgs(1),
	RunE:          runCompile,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringVar(&compileParams, "params", "", `Parameter values as a JSON object, e.g. '{"status":"active"}'`)
	compileCmd.Flags().StringVar(&compileDialect, "dialect", "", "Bind values for this connection type (postgres, mysql, mssql)")
}

func runCompile(cmd *cobra.Command, args []string) error {
	def, values, err := readCompileInput(args[0], compileParams)
	if err != nil {
		return logger.WithTag("compile", err)
	}

	resolved := params.SubstituteQueryDefinition(def, values)
	if err := compiler.Validate(resolved); err != nil {
		return logger.WithTag("compile", err)
	}

	out := cmd.OutOrStdout()
	if compileDialect == "" {
		fmt.Fprintln(out, compiler.Compile(resolved))
		return nil
	}

	d, err := gateway.ResolveDialect(compileDialect)
	if err != nil {
		return logger.WithTag("compile", err)
	}
	style := gateway.CapabilitiesOf(d).BindStyle
	if style == 0 {
		return logger.WithTag("compile", fmt.Errorf("connection type '%s' does not support bound parameters", compileDialect))
	}
	sql, bound := compiler.CompileBound(resolved, style)
	fmt.Fprintln(out, sql)
	for i, v := range bound {
		fmt.Fprintf(out, "-- arg %d: %s\n", i+1, compiler.Literal(v))
	}
	return nil
}

func readCompileInput(path, rawParams string) (domain.QueryDefinition, domain.ParameterValues, error) {
	var def domain.QueryDefinition
	content, err := os.ReadFile(path)
	if err != nil {
		return def, nil, fmt.Errorf("error reading definition: %w", err)
	}
	if err := json.Unmarshal(content, &def); err != nil {
		return def, nil, fmt.Errorf("invalid definition %s: %w", path, err)
	}

	values := domain.ParameterValues{}
	if rawParams != "" {
		if err := json.Unmarshal([]byte(rawParams), &values); err != nil {
			return def, nil, fmt.Errorf("invalid --params: %w", err)
		}
	}
	return def, values, nil
}
