package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arcticfish-wang/pickplace/internal/scene"
	"github.com/arcticfish-wang/pickplace/internal/sim"
)

var sceneCmd = &cobra.Command{
	Use:   "scene",
	Short: "Show the static scene and where objects can rest",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		setup, err := scene.NewSetup(cfg.SceneTable(), cfg.SceneWalls(), cfg.BlockSize, sim.NewWorld(), nil)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Obstacles:")
		for _, o := range setup.Obstacles() {
			fmt.Fprintf(out, "  %-12s center (%.3f, %.3f, %.3f) size (%.3f, %.3f, %.3f)\n",
				o.Name, o.Center.X, o.Center.Y, o.Center.Z, o.Size.X, o.Size.Y, o.Size.Z)
		}

		w, d := setup.WidthRange(), setup.DepthRange()
		fmt.Fprintf(out, "\nObject width range: %.3f <= y <= %.3f\n", w.Min, w.Max)
		fmt.Fprintf(out, "Object depth range: %.3f <= x <= %.3f\n", d.Min, d.Max)
		fmt.Fprintf(out, "Object resting z:   %.3f\n", setup.ObjectRestingZ())

		fmt.Fprintln(out, "\nObjects:")
		for _, item := range cfg.WorkItems(setup.ObjectRestingZ()) {
			mark := color.GreenString("✓")
			if !setup.OnTable(item.StartPose) || !setup.OnTable(item.GoalPose) {
				mark = color.RedString("✗")
			}
			fmt.Fprintf(out, "  %s %-8s start %s  goal %s\n", mark, item.ID, item.StartPose, item.GoalPose)
		}
		return nil
	},
}
