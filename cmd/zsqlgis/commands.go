package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Tqy43/ZSQL-gis/internal/adapters/project"
	"github.com/Tqy43/ZSQL-gis/internal/app"
	"github.com/Tqy43/ZSQL-gis/internal/application"
	"github.com/Tqy43/ZSQL-gis/internal/codec"
	"github.com/Tqy43/ZSQL-gis/internal/domain"
)

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import CSV or GeoJSON files into layers",
	Long: `Import reads each file into point, line and polygon layers and prints a
summary per layer. Layers can be pushed to the spatial store, exported as
GeoJSON files or saved as a project.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

var queryCmd = &cobra.Command{
	Use:   "query [file]...",
	Short: "List features intersecting a bounding box",
	Long: `Query imports the given files, adds them to the configured project and
prints the features of every visible layer intersecting --bbox. With
--store the bounding box is run against the spatial store table of that
layer kind instead.`,
	RunE: runQuery,
}

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage project files",
}

var projectNewCmd = &cobra.Command{
	Use:   "new [file]",
	Short: "Clear every layer and save an empty project",
	Long: `New drops the layers of the configured project and writes an empty
project to the given file, or to --project when no file is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProjectNew,
}

func init() {
	projectCmd.AddCommand(projectNewCmd)

	importCmd.Flags().Bool("push", false, "insert the imported layers into the spatial store")
	importCmd.Flags().String("out-dir", "", "write every layer as <name>.geojson into this directory")
	importCmd.Flags().String("save", "", "save the layers as a project file (.yaml or .json)")

	queryCmd.Flags().String("bbox", "", "bounding box minLon,minLat,maxLon,maxLat")
	queryCmd.Flags().String("store", "", "query the store table of a layer kind (point, line, polygon)")
	queryCmd.Flags().Int("limit", 0, "maximum store rows (default: store.default_limit)")
	_ = queryCmd.MarkFlagRequired("bbox")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newCLIApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	push, _ := cmd.Flags().GetBool("push")
	outDir, _ := cmd.Flags().GetString("out-dir")
	savePath, _ := cmd.Flags().GetString("save")

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tLAYER\tKIND\tFEATURES\tSKIPPED")

	var names []string
	for _, path := range args {
		result, err := a.Importer.ImportFile(ctx, path)
		if err != nil {
			return err
		}
		if len(result.Layers) == 0 {
			fmt.Fprintf(tw, "%s\t-\t-\t0\t%d\n", result.Source, result.Skipped)
		}
		for _, info := range result.Layers {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", result.Source, info.Name, info.Kind, info.FeatureCount, result.Skipped)
			names = append(names, info.Name)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if push {
		if err := pushLayers(ctx, a, names, out); err != nil {
			return err
		}
	}
	if outDir != "" {
		if err := exportLayers(ctx, a, names, outDir); err != nil {
			return err
		}
		fmt.Fprintf(out, "exported %d layers to %s\n", len(names), outDir)
	}
	if savePath != "" {
		if err := project.Save(savePath, a.Layers.Layers(ctx)); err != nil {
			return fmt.Errorf("saving project: %w", err)
		}
		fmt.Fprintf(out, "saved project %s\n", savePath)
	}
	return nil
}

func pushLayers(ctx context.Context, a *app.App, names []string, out io.Writer) error {
	for _, name := range names {
		result, err := a.StoreService.PushLayer(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "pushed %s: %d inserted, %d failed into %s\n", result.Layer, result.Inserted, result.Failed, result.Table)
	}
	return nil
}

func exportLayers(ctx context.Context, a *app.App, names []string, dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	for _, name := range names {
		doc, err := a.Exporter.ExportLayer(ctx, name)
		if err != nil {
			return err
		}
		if err := writeFile(filepath.Join(dir, name+".geojson"), doc); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, doc *codec.Document) error {
	f, err := os.Create(path) //nolint:gosec // output path is operator supplied
	if err != nil {
		return err
	}
	if err := application.WriteDocument(f, doc); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func runProjectNew(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newCLIApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	path := a.Config.Project.File
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return errors.New("no project file: pass one or set --project")
	}

	a.Layers.Clear(ctx)
	if err := project.Save(path, a.Layers.Layers(ctx)); err != nil {
		return fmt.Errorf("saving project: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "new project %s\n", path)
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	raw, _ := cmd.Flags().GetString("bbox")
	bbox, err := domain.ParseBBox(raw)
	if err != nil {
		return err
	}

	a, err := newCLIApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LAYER\tNAME\tGEOMETRY")

	if kindFlag, _ := cmd.Flags().GetString("store"); kindFlag != "" {
		kind, err := domain.ParseLayerKind(kindFlag)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		result, err := a.StoreService.Pull(ctx, kind, &bbox, limit, false)
		if err != nil {
			return err
		}
		for _, f := range result.Features {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", result.Table, f.Name, codec.ToText(f.Geometry))
		}
		return tw.Flush()
	}

	for _, path := range args {
		if _, err := a.Importer.ImportFile(ctx, path); err != nil {
			return err
		}
	}
	resp, err := a.Layers.Query(ctx, bbox)
	if err != nil {
		return err
	}
	for _, m := range resp.Matches {
		for _, f := range m.Features {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Layer.Name, f.Name, codec.ToText(f.Geometry))
		}
	}
	return tw.Flush()
}
