package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/SmartXchain/piedmont-sub000/internal/app"
	"github.com/SmartXchain/piedmont-sub000/internal/config"
	"github.com/SmartXchain/piedmont-sub000/internal/domain"
	"github.com/SmartXchain/piedmont-sub000/internal/engine"
	"github.com/SmartXchain/piedmont-sub000/internal/logger"
	"github.com/SmartXchain/piedmont-sub000/internal/metrics"
	"github.com/SmartXchain/piedmont-sub000/internal/repo"
	"github.com/SmartXchain/piedmont-sub000/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "piedmont",
	Short: "Piedmont production scheduler",
	Long: `Piedmont compiles work order routings into timed operations, tracks
order and operation status, records manual delays and projects the shop
schedule as a resource timeline.

Workspace: .piedmont/piedmont.db holds the data, piedmont.yml the shop config.
Catalog: methods (duration bounds), routings (ordered steps) and resources,
imported from YAML with 'piedmont catalog import'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	workspace := viper.GetString("workspace")
	_ = godotenv.Load(filepath.Join(workspace, ".env"))
	viper.SetEnvPrefix("PIEDMONT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(resourceCmd())
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(opCmd())
	rootCmd.AddCommand(delayCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func actorID() string {
	return viper.GetString("actor-id")
}

// --- catalog ---

func catalogCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "catalog",
		Short: "Manage methods, routings and resources",
	}
	c.AddCommand(catalogImportCmd())
	c.AddCommand(catalogListCmd())
	return c
}

func catalogImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a catalog YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sum, err := e.ImportCatalog(ctx, data, actorID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				fmt.Printf("imported %d methods, %d routings, %d resources\n", sum.Methods, sum.Routings, sum.Resources)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "catalog.yml", "catalog file")
	return cmd
}

func catalogListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List methods and routings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				methods, err := r.ListMethods(ctx)
				if err != nil {
					return err
				}
				routings, err := r.ListRoutings(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"methods": methods, "routings": routings})
				}
				tw := newTable("Method", "Title", "Tank", "Touch", "Run")
				for _, m := range methods {
					tw.AppendRow(table.Row{m.ID, m.Title, m.Tank, bounds(m.TouchMin.Decimal.String(), m.TouchMin.Valid, m.TouchMax.Decimal.String(), m.TouchMax.Valid), bounds(m.RunMin.Decimal.String(), m.RunMin.Valid, m.RunMax.Decimal.String(), m.RunMax.Valid)})
				}
				fmt.Println(tw.Render())
				rt := newTable("Routing", "Name", "Steps")
				for _, r := range routings {
					steps := make([]string, 0, len(r.Steps))
					for _, st := range r.Steps {
						steps = append(steps, fmt.Sprintf("%d:%s", st.StepNumber, stringOr(st.MethodID, "-")))
					}
					rt.AppendRow(table.Row{r.ID, r.Name, strings.Join(steps, " ")})
				}
				fmt.Println(rt.Render())
				return nil
			})
		},
	}
}

func bounds(lo string, hasLo bool, hi string, hasHi bool) string {
	if !hasLo {
		lo = "?"
	}
	if !hasHi {
		hi = "?"
	}
	return lo + "-" + hi
}

// --- resources ---

func resourceCmd() *cobra.Command {
	c := &cobra.Command{Use: "resource", Short: "Manage shop resources"}
	c.AddCommand(resourceAddCmd())
	c.AddCommand(resourceListCmd())
	return c
}

func resourceAddCmd() *cobra.Command {
	var id, name, typ, dept string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a resource",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.CreateResource(ctx, engine.ResourceCreateOptions{
					ID: id, Name: name, Type: typ, Department: dept, ActorID: actorID(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "resource id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "resource name")
	cmd.Flags().StringVar(&typ, "type", "tank", "tank, oven, line, operator or cell")
	cmd.Flags().StringVar(&dept, "department", "", "department")
	return cmd
}

func resourceListCmd() *cobra.Command {
	var active bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List resources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListResources(ctx, active)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Name", "Type", "Department", "Active")
				for _, res := range items {
					tw.AppendRow(table.Row{res.ID, res.Name, res.Type, res.Department, res.Active})
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&active, "active", false, "only active resources")
	return cmd
}

// --- orders ---

func orderCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "order",
		Short: "Manage work orders",
		Long:  "Orders move planned -> scheduled -> in_progress -> done; hold parks them and cancel freezes them.",
	}
	c.AddCommand(orderCreateCmd())
	c.AddCommand(orderListCmd())
	c.AddCommand(orderShowCmd())
	c.AddCommand(orderAttachRoutingCmd())
	c.AddCommand(orderCompileCmd())
	c.AddCommand(orderStatusCmd())
	c.AddCommand(orderCancelCmd())
	c.AddCommand(orderPartStatusCmd())
	return c
}

func orderCreateCmd() *cobra.Command {
	var opts engine.OrderCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a work order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = actorID()
				o, err := e.CreateOrder(ctx, opts)
				if err != nil {
					return err
				}
				return printOrder(e, o)
			})
		},
	}
	cmd.Flags().StringVar(&opts.WorkOrder, "work-order", "", "work order number")
	cmd.Flags().StringVar(&opts.PartNumber, "part-number", "", "part number")
	cmd.Flags().StringVar(&opts.PartDescription, "description", "", "part description")
	cmd.Flags().IntVar(&opts.Quantity, "qty", 1, "quantity")
	cmd.Flags().StringVar(&opts.RoutingID, "routing", "", "routing id")
	cmd.Flags().StringVar(&opts.StartDate, "start", "", "start date YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date YYYY-MM-DD")
	return cmd
}

func orderListCmd() *cobra.Command {
	var f repo.OrderFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListOrders(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				today := e.Today()
				tw := newTable("Work Order", "Part", "Qty", "Routing", "Status", "Finish", "Due", "Late")
				for _, o := range items {
					late := ""
					if o.IsLate(today) {
						late = "LATE"
					}
					tw.AppendRow(table.Row{o.WorkOrder, o.PartNumber, o.Quantity, stringOr(o.RoutingID, "-"), o.Status.Label(), stringOr(o.EstimatedFinishDate, "-"), stringOr(o.DueDate, "-"), late})
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.RoutingID, "routing", "", "routing filter")
	return cmd
}

func orderShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <order>",
		Short: "Show an order with its operations and delays",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := resolveOrder(ctx, e, args[0])
				if err != nil {
					return err
				}
				ops, err := e.ListOperations(ctx, o.ID)
				if err != nil {
					return err
				}
				delays, err := e.ListDelays(ctx, o.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"order": o, "operations": ops, "delays": delays})
				}
				fmt.Printf("%s  %s x%d  [%s]  finish %s\n", o.WorkOrder, o.PartNumber, o.Quantity, o.Status.Label(), stringOr(o.EstimatedFinishDate, "-"))
				loc := e.Today().Location()
				tw := newTable("Seq", "Step", "Method", "Start", "End", "Min", "Status")
				for _, op := range ops {
					tw.AppendRow(table.Row{op.Sequence, op.StepNumber, stringOr(op.MethodID, "-"), op.PlannedStart.In(loc).Format("2006-01-02 15:04"), op.PlannedEnd.In(loc).Format("2006-01-02 15:04"), op.Minutes(), op.Status})
				}
				fmt.Println(tw.Render())
				for _, d := range delays {
					fmt.Printf("step %d: +%d min\n%s\n", d.StepNumber, d.AddedMinutes, d.Reason)
				}
				return nil
			})
		},
	}
}

func orderAttachRoutingCmd() *cobra.Command {
	var routing string
	cmd := &cobra.Command{
		Use:   "attach-routing <order>",
		Short: "Attach a routing and compile the schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := resolveOrder(ctx, e, args[0])
				if err != nil {
					return err
				}
				o, err = e.AttachRouting(ctx, o.ID, routing, actorID())
				if err != nil {
					return err
				}
				return printOrder(e, o)
			})
		},
	}
	cmd.Flags().StringVar(&routing, "routing", "", "routing id")
	_ = cmd.MarkFlagRequired("routing")
	return cmd
}

func orderCompileCmd() *cobra.Command {
	var start, resource string
	cmd := &cobra.Command{
		Use:   "compile <order>",
		Short: "Compile the order's routing into operations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := resolveOrder(ctx, e, args[0])
				if err != nil {
					return err
				}
				opts := engine.CompileOptions{OrderID: o.ID, ResourceID: resource, ActorID: actorID()}
				if start != "" {
					at, err := time.Parse(time.RFC3339, start)
					if err != nil {
						return fmt.Errorf("--start must be RFC3339: %w", err)
					}
					opts.Start = &at
				}
				ops, err := e.CompileSchedule(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(ops)
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "anchor time (RFC3339), defaults to the start date")
	cmd.Flags().StringVar(&resource, "resource", "", "resource for every operation")
	return cmd
}

func orderStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <order> <status>",
		Short: "Set order status (planned, in_progress, hold, done)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := resolveOrder(ctx, e, args[0])
				if err != nil {
					return err
				}
				o, err = e.UpdateOrderStatus(ctx, engine.StatusUpdateOptions{OrderID: o.ID, Status: args[1], ActorID: actorID()})
				if err != nil {
					return err
				}
				return printOrder(e, o)
			})
		},
	}
}

func orderCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <order>",
		Short: "Cancel an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := resolveOrder(ctx, e, args[0])
				if err != nil {
					return err
				}
				o, err = e.CancelOrder(ctx, o.ID, actorID())
				if err != nil {
					return err
				}
				return printOrder(e, o)
			})
		},
	}
}

func orderPartStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "part-status <order> <status>",
		Short: "Record part status (not_received, received, not_booked, booked)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := resolveOrder(ctx, e, args[0])
				if err != nil {
					return err
				}
				o, err = e.SetPartStatus(ctx, o.ID, args[1], actorID())
				if err != nil {
					return err
				}
				return printOrder(e, o)
			})
		},
	}
}

// --- operations ---

func opCmd() *cobra.Command {
	c := &cobra.Command{Use: "op", Short: "Track operation execution"}
	c.AddCommand(opUpdateCmd())
	return c
}

func opUpdateCmd() *cobra.Command {
	var status, resource, start, end string
	var seq int
	cmd := &cobra.Command{
		Use:   "update <order>",
		Short: "Update an operation's status, resource or actual times",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := resolveOrder(ctx, e, args[0])
				if err != nil {
					return err
				}
				opts := engine.OperationUpdateOptions{OrderID: o.ID, Sequence: seq, Status: status, ActorID: actorID()}
				if cmd.Flags().Changed("resource") {
					opts.ResourceID = &resource
				}
				if opts.ActualStart, err = parseOptionalTime("actual-start", start); err != nil {
					return err
				}
				if opts.ActualEnd, err = parseOptionalTime("actual-end", end); err != nil {
					return err
				}
				op, err := e.UpdateOperation(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(op)
			})
		},
	}
	cmd.Flags().IntVar(&seq, "seq", 0, "operation sequence")
	cmd.Flags().StringVar(&status, "status", "", "planned, in_progress, completed, hold or cancelled")
	cmd.Flags().StringVar(&resource, "resource", "", "resource id (empty clears)")
	cmd.Flags().StringVar(&start, "actual-start", "", "actual start (RFC3339)")
	cmd.Flags().StringVar(&end, "actual-end", "", "actual end (RFC3339)")
	_ = cmd.MarkFlagRequired("seq")
	return cmd
}

func parseOptionalTime(flag, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("--%s must be RFC3339: %w", flag, err)
	}
	return &t, nil
}

// --- delays ---

func delayCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "delay",
		Short: "Manual delay ledger",
		Long:  "Delays add minutes to one step of an order. They widen the projected bars without moving planned operations.",
	}
	c.AddCommand(delayAddCmd())
	c.AddCommand(delayListCmd())
	return c
}

func delayAddCmd() *cobra.Command {
	var step, minutes int
	var reason string
	cmd := &cobra.Command{
		Use:   "add <order>",
		Short: "Add minutes to an order step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := resolveOrder(ctx, e, args[0])
				if err != nil {
					return err
				}
				d, err := e.AddDelay(ctx, engine.DelayOptions{
					OrderID: o.ID, StepNumber: step, Minutes: minutes, Reason: reason, ActorID: actorID(),
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(d)
				}
				fmt.Printf("%s step %d now delayed %d min\n", o.WorkOrder, d.StepNumber, d.AddedMinutes)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&step, "step", 0, "routing step number")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "minutes to add")
	cmd.Flags().StringVar(&reason, "reason", "", "justification")
	return cmd
}

func delayListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <order>",
		Short: "List delays of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := resolveOrder(ctx, e, args[0])
				if err != nil {
					return err
				}
				items, err := e.ListDelays(ctx, o.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("Step", "Minutes", "Reason")
				for _, d := range items {
					tw.AppendRow(table.Row{d.StepNumber, d.AddedMinutes, d.Reason})
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	}
}

// --- schedule ---

func scheduleCmd() *cobra.Command {
	c := &cobra.Command{Use: "schedule", Short: "Projected shop timeline"}
	c.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the projected schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sched, err := e.Schedule(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sched)
				}
				titles := make(map[string]string, len(sched.Resources))
				for _, r := range sched.Resources {
					titles[r.ID] = r.Title
				}
				tw := newTable("Row", "Bar", "Start", "End", "Delay", "Status")
				for _, ev := range sched.Events {
					delay := ""
					if ev.ExtendedProps.IsDelayed {
						delay = fmt.Sprintf("+%d", ev.ExtendedProps.DelayMinutes)
					}
					tw.AppendRow(table.Row{titles[ev.ResourceID], ev.Title, ev.Start, ev.End, delay, ev.ExtendedProps.Status})
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	})
	return c
}

// --- config ---

func configCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "config",
		Short: "Inspect shop config",
		Long:  "piedmont.yml sets the shop time zone, start of day, colours and server options.",
	}
	c.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	})
	var shop string
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default piedmont.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(shop)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	initCmd.Flags().StringVar(&shop, "shop", "Piedmont", "shop name")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	c.AddCommand(initCmd)
	return c
}

// --- log ---

func logCmd() *cobra.Command {
	l := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every change (orders, compiles, delays, status updates) is recorded with its actor.",
	}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable("ID", "TS", "Type", "Entity", "Actor")
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + ":" + evt.EntityID, evt.ActorID})
				}
				fmt.Println(tw.Render())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

// --- serve ---

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer ws.Close()
			log, err := logger.New(viper.GetString("log-level"))
			if err != nil {
				return err
			}
			defer log.Sync()
			if addr == "" {
				addr = ws.Config.Server.Addr
			}
			if basePath == "" {
				basePath = ws.Config.Server.BasePath
			}
			m := metrics.New("piedmont")
			authCfg := server.AuthConfig{}
			if env := ws.Config.Server.JWTSecretEnv; env != "" {
				authCfg.JWTSecret = os.Getenv(env)
			}
			handler, err := server.New(server.Config{
				Engine:   ws.Engine(log, m),
				BasePath: basePath,
				Auth:     authCfg,
				Logger:   log,
				Metrics:  m,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			log.Info("serving piedmont api", "addr", addr, "base_path", basePath, "jwt", authCfg.JWTSecret != "")
			fmt.Printf("Serving Piedmont API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from piedmont.yml)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from piedmont.yml)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	ws, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws.Engine(nil, nil))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	ws, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, repo.Repo{DB: ws.DB})
}

// resolveOrder accepts an order id or a work order number.
func resolveOrder(ctx context.Context, e engine.Engine, ref string) (domain.Order, error) {
	o, err := e.GetOrder(ctx, ref)
	if err == nil || !errors.Is(err, repo.ErrNotFound) {
		return o, err
	}
	o, err = e.Repo.GetOrderByWorkOrder(ctx, ref)
	if errors.Is(err, repo.ErrNotFound) {
		return o, fmt.Errorf("order %s: %w", ref, repo.ErrNotFound)
	}
	return o, err
}

func printOrder(e engine.Engine, o domain.Order) error {
	if viper.GetBool("json") {
		return printJSON(o)
	}
	late := ""
	if o.IsLate(e.Today()) {
		late = " LATE"
	}
	fmt.Printf("%s  %s  %s  [%s]  finish %s%s\n", o.ID, o.WorkOrder, o.PartNumber, o.Status.Label(), stringOr(o.EstimatedFinishDate, "-"), late)
	return nil
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row(header))
	return tw
}

func stringOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
