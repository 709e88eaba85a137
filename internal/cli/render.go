package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	blade "github.com/dangdungcntt/go-blade-slots"
)

func newRenderCommand(v *viper.Viper) *cobra.Command {
	var (
		dataFile  string
		component bool
		slots     map[string]string
	)

	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Render a page or a component to stdout",
		Example: `  blade render pages/home --data home.yml
  blade render card --component --data card.yml --slot header="Hello"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), v.GetString("log-level"))
			if err != nil {
				return err
			}
			eng, err := newEngine(v, logger)
			if err != nil {
				return err
			}
			data, err := readData(dataFile)
			if err != nil {
				return err
			}

			if !component {
				if len(slots) > 0 {
					return fmt.Errorf("--slot needs --component")
				}
				return eng.RenderContext(cmd.Context(), cmd.OutOrStdout(), args[0], data)
			}
			in := blade.RenderInput{Kwargs: data, Slots: map[string]any{}}
			for name, text := range slots {
				in.Slots[name] = text
			}
			return eng.RenderComponent(cmd.Context(), cmd.OutOrStdout(), args[0], in)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&dataFile, "data", "d", "", "YAML or JSON file with the template data")
	flags.BoolVar(&component, "component", false, "render the template as a component, data become its keyword arguments")
	flags.StringToStringVar(&slots, "slot", nil, "fill a component slot with text (name=text)")
	return cmd
}

func readData(path string) (map[string]any, error) {
	data := map[string]any{}
	if path == "" {
		return data, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse data %s: %w", path, err)
	}
	return data, nil
}
