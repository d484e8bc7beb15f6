package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/nci/ndelta/metrics"
	proc "github.com/nci/ndelta/processor"
	"github.com/nci/ndelta/utils"
	"golang.org/x/crypto/ssh/terminal"
)

var (
	configFile    = flag.String("conf", utils.EtcDir+"/config.json", "Product config file.")
	productName   = flag.String("product", "", "Name of the product to compute.")
	catalogDir    = flag.String("catalog", "", "Scene catalogue directory; used instead of the metadata API.")
	masAddress    = flag.String("mas", "", "Metadata API address; overrides service_config.mas_address.")
	workerNodes   = flag.String("worker", "", "Comma separated index worker addresses; overrides service_config.worker_nodes.")
	strategyName  = flag.String("strategy", "expression", "Index strategy: expression or explicit. Ignored when index workers are used.")
	outputDir     = flag.String("out", "", "Output directory for layers; overrides service_config.output_dir.")
	templateDir   = flag.String("template_dir", "", "Directory of the layer descriptor template.")
	metricsLogDir = flag.String("metrics_log_dir", "", "Metrics log directory, '-' for stdout.")
	conc          = flag.Int("conc", 2, "Number of periods processed concurrently.")
	verbose       = flag.Bool("verbose", false, "Verbose mode for more outputs.")
)

var (
	Error *log.Logger
	Info  *log.Logger
)

type layerSummary struct {
	Name   string            `json:"name"`
	File   string            `json:"file"`
	Images []string          `json:"images"`
	Stats  utils.RasterStats `json:"stats"`
}

type runSummary struct {
	Product    string          `json:"product"`
	Kind       string          `json:"kind"`
	Descriptor string          `json:"descriptor"`
	Layers     []*layerSummary `json:"layers"`
}

// runEnv holds the collaborators of one product run.
type runEnv struct {
	Collection proc.CollectionService
	Images     proc.StaticImageSource
	Strategy   proc.IndexStrategy
	Renderer   *utils.FileRenderer
	Metrics    *metrics.MetricsCollector
	MaxConc    int
}

func (env *runEnv) maskSource(product *utils.Product) proc.MaskSource {
	if len(product.MaskDataset) == 0 {
		return nil
	}
	return &proc.DatasetMaskSource{Images: env.Images, Band: product.MaskBand, BitMask: product.Mask}
}

func styleOptions(style utils.Style) utils.StyleOptions {
	return utils.StyleOptions{Min: style.Min, Max: style.Max, Palette: []string(style.Palette)}
}

func runProduct(ctx context.Context, product *utils.Product, env *runEnv) (*runSummary, error) {
	summary := &runSummary{Product: product.Name, Kind: product.Kind}

	switch product.Kind {
	case utils.ProductDelta:
		earlier, err := proc.NewPeriod(&product.Periods[0])
		if err != nil {
			return nil, err
		}
		later, err := proc.NewPeriod(&product.Periods[1])
		if err != nil {
			return nil, err
		}

		strategy := env.Strategy
		if len(product.Expression) > 0 {
			if _, remote := strategy.(*proc.RemoteStrategy); !remote {
				strategy, err = proc.NewCustomExpressionStrategy(product.Expression)
				if err != nil {
					return nil, err
				}
			}
		}

		dp := proc.InitDeltaPipeline(ctx, env.Collection, env.maskSource(product), strategy, env.MaxConc)
		dp.Metrics = env.Metrics
		res, err := dp.Process(&proc.DeltaRequest{
			Product:     product.Name,
			Dataset:     product.Dataset,
			Point:       product.Location,
			Earlier:     earlier,
			Later:       later,
			BandA:       product.BandA,
			BandB:       product.BandB,
			MaskDataset: product.MaskDataset,
		})
		if err != nil {
			return nil, err
		}

		if err = env.Renderer.CenterOn(res.Masked, product.Zoom); err != nil {
			return nil, err
		}
		if err = env.Renderer.AddLayer(res.Masked, styleOptions(product.Style), product.Title); err != nil {
			return nil, err
		}
		summary.Layers = append(summary.Layers, &layerSummary{
			Name:   product.Title,
			File:   utils.LayerFileName(product.Title),
			Images: []string{res.Earlier.Image.ID, res.Later.Image.ID},
			Stats:  res.Masked.Stats(),
		})

	case utils.ProductComposite:
		var periods []proc.Period
		for ip := range product.Periods {
			period, err := proc.NewPeriod(&product.Periods[ip])
			if err != nil {
				return nil, err
			}
			periods = append(periods, period)
		}

		cp := proc.InitCompositePipeline(ctx, env.Collection, env.maskSource(product))
		cp.Metrics = env.Metrics
		res, err := cp.Process(&proc.CompositeRequest{
			Product:     product.Name,
			Dataset:     product.Dataset,
			Point:       product.Location,
			Band:        product.Band,
			Periods:     periods,
			MaskDataset: product.MaskDataset,
		})
		if err != nil {
			return nil, err
		}

		if err = env.Renderer.CenterOn(res.Periods[0].Masked, product.Zoom); err != nil {
			return nil, err
		}
		for _, pr := range res.Periods {
			if err = env.Renderer.AddLayer(pr.Masked, styleOptions(product.Style), pr.Period.Title); err != nil {
				return nil, err
			}
			var ids []string
			for _, img := range pr.Images {
				ids = append(ids, img.ID)
			}
			summary.Layers = append(summary.Layers, &layerSummary{
				Name:   pr.Period.Title,
				File:   utils.LayerFileName(pr.Period.Title),
				Images: ids,
				Stats:  pr.Masked.Stats(),
			})
		}

	default:
		return nil, fmt.Errorf("unknown product kind: %q", product.Kind)
	}

	descriptor, err := env.Renderer.Flush()
	if err != nil {
		return nil, err
	}
	summary.Descriptor = descriptor
	return summary, nil
}

func printSummary(w io.Writer, summary *runSummary, table bool) error {
	if !table {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		return enc.Encode(summary)
	}

	fmt.Fprintf(w, "Product %s (%s)\n", summary.Product, summary.Kind)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LAYER\tFILE\tIMAGES\tVALID\tMIN\tMAX\tMEAN")
	for _, layer := range summary.Layers {
		st := layer.Stats
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%.4f\t%.4f\t%.4f\n", layer.Name, layer.File, strings.Join(layer.Images, ","),
			st.Pixels-st.NoDataPixels, st.Pixels, st.Min, st.Max, st.Mean)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "Layer descriptor: %s\n", summary.Descriptor)
	return nil
}

func splitAddresses(addrs string) []string {
	var out []string
	for _, addr := range strings.Split(addrs, ",") {
		if addr = strings.TrimSpace(addr); len(addr) > 0 {
			out = append(out, addr)
		}
	}
	return out
}

func newMetricsLogger(logDir string) metrics.Logger {
	if len(logDir) == 0 {
		return nil
	}
	if logDir == "-" {
		return metrics.NewStdoutLogger()
	}

	maxLogFileSize := int64(0)
	if val, ok := os.LookupEnv("NDELTA_MAX_LOG_FILE_SIZE"); ok {
		valInt, e := strconv.ParseInt(val, 10, 64)
		if e == nil {
			maxLogFileSize = valInt
		} else {
			Error.Printf("invalid NDELTA_MAX_LOG_FILE_SIZE: %v", e)
		}
	}

	maxLogFiles := -1
	if val, ok := os.LookupEnv("NDELTA_MAX_LOG_FILES"); ok {
		valInt, e := strconv.ParseInt(val, 10, 32)
		if e == nil {
			maxLogFiles = int(valInt)
		} else {
			Error.Printf("invalid NDELTA_MAX_LOG_FILES: %v", e)
		}
	}

	return metrics.NewFileLogger(logDir, maxLogFileSize, maxLogFiles, *verbose)
}

func init() {
	Error = log.New(os.Stderr, "DELTA: ", log.Ldate|log.Ltime|log.Lshortfile)
	Info = log.New(os.Stderr, "DELTA: ", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	resolver := utils.NewRuntimeFileResolver(os.Getenv("NDELTA_DATA_PATH"))
	configPath, err := resolver.Lookup(*configFile)
	if err != nil {
		Error.Printf("Error in locating config file: %v", err)
		return 2
	}

	config := &utils.Config{}
	if err = config.LoadConfigFile(configPath); err != nil {
		Error.Printf("Error in loading config file: %v", err)
		return 2
	}

	name := *productName
	if len(name) == 0 && len(config.Products) == 1 {
		name = config.Products[0].Name
	}
	idx, err := utils.GetProductIndex(name, config)
	if err != nil {
		Error.Printf("%v", err)
		return 2
	}
	product := &config.Products[idx]

	sc := config.ServiceConfig
	if len(*masAddress) > 0 {
		sc.MASAddress = *masAddress
	}
	if len(*workerNodes) > 0 {
		sc.WorkerNodes = splitAddresses(*workerNodes)
	}
	if len(*outputDir) > 0 {
		sc.OutputDir = *outputDir
	}
	if len(sc.OutputDir) == 0 {
		sc.OutputDir = "."
	}
	if len(*templateDir) > 0 {
		sc.TemplateDir = *templateDir
	}
	if len(sc.TemplateDir) == 0 {
		sc.TemplateDir = utils.DataDir + "/templates"
	}
	sc.TemplateDir, err = resolver.ResolveTemplateDir(sc.TemplateDir)
	if err != nil {
		Error.Printf("Error in locating layers template: %v", err)
		return 2
	}
	if len(*metricsLogDir) > 0 {
		sc.MetricsLogDir = *metricsLogDir
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := &runEnv{MaxConc: *conc}
	switch {
	case len(*catalogDir) > 0:
		catalog, err := proc.LoadCatalog(*catalogDir, 8)
		if err != nil {
			Error.Printf("Error in loading scene catalogue: %v", err)
			return 2
		}
		if *verbose {
			Info.Printf("scene catalogue %s: datasets %v", *catalogDir, catalog.Datasets())
		}
		env.Collection = catalog
		env.Images = catalog
	case len(sc.MASAddress) > 0:
		mas := proc.NewMASCollection(sc.MASAddress)
		env.Collection = mas
		env.Images = mas
	default:
		Error.Printf("Please specify either -catalog or a metadata API address")
		return 2
	}

	if len(sc.WorkerNodes) > 0 {
		remote, err := proc.NewRemoteStrategy(ctx, sc.WorkerNodes, *strategyName, 0)
		if err != nil {
			Error.Printf("Error in connecting index workers: %v", err)
			return 2
		}
		defer remote.Close()
		env.Strategy = remote
	} else {
		env.Strategy, err = proc.NewIndexStrategy(*strategyName)
		if err != nil {
			Error.Printf("%v", err)
			return 2
		}
	}

	if err = os.MkdirAll(sc.OutputDir, 0755); err != nil {
		Error.Printf("Error in creating output directory: %v", err)
		return 2
	}
	env.Renderer = utils.NewFileRenderer(sc.OutputDir, sc.TemplateDir)

	metricsLogger := newMetricsLogger(sc.MetricsLogDir)
	if metricsLogger != nil {
		env.Metrics = metrics.NewMetricsCollector(metricsLogger)
		defer metricsLogger.Close()
	}

	if *verbose {
		Info.Printf("running product %s (%s) on dataset %s", product.Name, product.Kind, product.Dataset)
	}
	summary, err := runProduct(ctx, product, env)
	if env.Metrics != nil {
		env.Metrics.Log()
	}
	if err != nil {
		Error.Printf("Error in the pipeline: %v", err)
		return 1
	}

	if err = printSummary(os.Stdout, summary, terminal.IsTerminal(int(os.Stdout.Fd()))); err != nil {
		Error.Printf("%v", err)
		return 1
	}
	return 0
}
