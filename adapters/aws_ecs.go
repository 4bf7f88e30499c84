package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/smithy-go"
	"github.com/aws/smithy-go/logging"
	"github.com/sirupsen/logrus"

	"github.com/resttable/resttable/core"
	"github.com/resttable/resttable/core/builders"
)

// Register backend
func init() {
	if err := register(new(awsECSAdapter), "aws_ecs", "amazon_ecs"); err != nil {
		panic(fmt.Sprintf("register aws_ecs: %s", err))
	}
}

const (
	// awsListMax is the largest page the ECS list calls accept.
	awsListMax = 100
	// awsDescribeServicesMax is the largest batch of DescribeServices.
	awsDescribeServicesMax = 10
)

// ecsAPI is the part of the ECS client the driver uses.
type ecsAPI interface {
	ListClusters(ctx context.Context, in *ecs.ListClustersInput, optFns ...func(*ecs.Options)) (*ecs.ListClustersOutput, error)
	DescribeClusters(ctx context.Context, in *ecs.DescribeClustersInput, optFns ...func(*ecs.Options)) (*ecs.DescribeClustersOutput, error)
	ListServices(ctx context.Context, in *ecs.ListServicesInput, optFns ...func(*ecs.Options)) (*ecs.ListServicesOutput, error)
	DescribeServices(ctx context.Context, in *ecs.DescribeServicesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error)
	ListTasks(ctx context.Context, in *ecs.ListTasksInput, optFns ...func(*ecs.Options)) (*ecs.ListTasksOutput, error)
	DescribeTasks(ctx context.Context, in *ecs.DescribeTasksInput, optFns ...func(*ecs.Options)) (*ecs.DescribeTasksOutput, error)
}

var _ core.Adapter = (*awsECSAdapter)(nil)

// awsECSAdapter serves clusters, services and tasks of Amazon ECS through
// the AWS SDK. The REST definition tables do not apply: requests are signed
// and shaped by the SDK.
type awsECSAdapter struct {
	// clientOpts are applied to every ECS client.
	clientOpts []func(*ecs.Options)
}

// Validate checks the config without touching the network.
func (a *awsECSAdapter) Validate(cfg *core.ConnectionConfig) error {
	if err := cfg.Require("access_key", "secret_key", "region", "cluster"); err != nil {
		return err
	}

	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return core.Errorf(core.ErrConfiguration, "validate config", "invalid endpoint_url %q", cfg.BaseURL)
		}
	}

	return nil
}

func (a *awsECSAdapter) Connect(cfg *core.ConnectionConfig) (core.Driver, error) {
	if err := a.Validate(cfg); err != nil {
		return nil, err
	}

	log := logrus.StandardLogger().WithFields(logrus.Fields{
		"backend":    "aws_ecs",
		"connection": cfg.Name,
	})

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			cfg.SessionToken,
		)),
		config.WithHTTPClient(awshttp.NewBuildableClient().WithTimeout(cfg.Timeout)),
		config.WithLogger(awsLogger{log: log}),
		config.WithClientLogMode(aws.LogRetries),
	)
	if err != nil {
		return nil, core.NewError(core.ErrConfiguration, "load aws config", err)
	}

	opts := []func(*ecs.Options){
		func(o *ecs.Options) {
			if cfg.BaseURL != "" {
				o.BaseEndpoint = aws.String(cfg.BaseURL)
			}
		},
	}

	return &awsECSDriver{
		api:     ecs.NewFromConfig(awsCfg, append(opts, a.clientOpts...)...),
		config:  cfg,
		cluster: cfg.Cluster,
		log:     log,
	}, nil
}

// awsLogger routes SDK log lines to logrus.
type awsLogger struct {
	log logrus.FieldLogger
}

func (l awsLogger) Logf(classification logging.Classification, format string, v ...any) {
	if classification == logging.Warn {
		l.log.Warnf(format, v...)
		return
	}
	l.log.Debugf(format, v...)
}

var _ core.Driver = (*awsECSDriver)(nil)

type awsECSDriver struct {
	api     ecsAPI
	config  *core.ConnectionConfig
	cluster string
	log     logrus.FieldLogger
}

// awsTable is a virtual table listed and described through the SDK.
type awsTable struct {
	*Table
	// list returns one page of resource ARNs.
	list func(d *awsECSDriver, ctx context.Context, token *string, n int32) ([]string, *string, error)
	// describe returns the rows of the named resources, missing ones are skipped.
	describe func(d *awsECSDriver, ctx context.Context, ids []string) ([]map[string]any, error)
}

var awsECSTables = []*awsTable{
	{
		Table: &Table{
			Name:        "clusters",
			Description: "ECS clusters of the account",
			IDField:     "clusterName",
			Columns: []*Column{
				{Name: "clusterArn", Type: "string"},
				{Name: "clusterName", Type: "string"},
				{Name: "status", Type: "string"},
				{Name: "activeServicesCount", Type: "integer"},
				{Name: "runningTasksCount", Type: "integer"},
				{Name: "pendingTasksCount", Type: "integer"},
				{Name: "registeredContainerInstancesCount", Type: "integer"},
				{Name: "capacityProviders", Type: "array"},
				{Name: "defaultCapacityProviderStrategy", Type: "array"},
				{Name: "tags", Type: "object"},
			},
		},
		list:     (*awsECSDriver).listClusters,
		describe: (*awsECSDriver).describeClusters,
	},
	{
		Table: &Table{
			Name:        "services",
			Description: "services of the cluster",
			IDField:     "serviceName",
			Columns: []*Column{
				{Name: "serviceArn", Type: "string"},
				{Name: "serviceName", Type: "string"},
				{Name: "status", Type: "string"},
				{Name: "desiredCount", Type: "integer"},
				{Name: "runningCount", Type: "integer"},
				{Name: "pendingCount", Type: "integer"},
				{Name: "launchType", Type: "string"},
				{Name: "taskDefinition", Type: "string"},
				{Name: "deploymentConfiguration", Type: "object"},
				{Name: "events", Type: "array"},
				{Name: "tags", Type: "object"},
			},
		},
		list:     (*awsECSDriver).listServices,
		describe: (*awsECSDriver).describeServices,
	},
	{
		Table: &Table{
			Name:        "tasks",
			Description: "tasks of the cluster",
			IDField:     "taskArn",
			Columns: []*Column{
				{Name: "taskArn", Type: "string"},
				{Name: "taskDefinition", Type: "string"},
				{Name: "status", Type: "string"},
				{Name: "startedAt", Type: "datetime"},
				{Name: "stoppedAt", Type: "datetime"},
				{Name: "launchType", Type: "string"},
				{Name: "containers", Type: "array"},
				{Name: "lastStatus", Type: "string"},
				{Name: "desiredStatus", Type: "string"},
				{Name: "cpu", Type: "string"},
				{Name: "memory", Type: "string"},
				{Name: "tags", Type: "object"},
			},
		},
		list:     (*awsECSDriver).listTasks,
		describe: (*awsECSDriver).describeTasks,
	},
}

func awsECSTable(name string) (*awsTable, error) {
	for _, t := range awsECSTables {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, core.Errorf(core.ErrValidation, "lookup table", "unknown table: %q", name)
}

func (d *awsECSDriver) Query(ctx context.Context, query *core.Query) (core.ResultStream, error) {
	switch query.Operation.Type {
	case core.OperationSelect:
		return d.selectRows(ctx, query)
	case core.OperationInsert:
		return nil, core.Errorf(core.ErrUnsupportedOperation, "insert", "table %q is read-only", query.Table)
	case core.OperationNative:
		return d.runNative(ctx, query.Operation.Command, query.Args)
	}

	return nil, core.Errorf(core.ErrUnsupportedOperation, "query", "unsupported operation: %s", query.Operation)
}

func (d *awsECSDriver) Insert(_ context.Context, table string, _ []map[string]any) ([]core.InsertStatus, error) {
	return nil, core.Errorf(core.ErrUnsupportedOperation, "insert", "table %q is read-only", table)
}

func (d *awsECSDriver) Structure(context.Context) ([]*core.Structure, error) {
	var structure []*core.Structure
	for _, t := range awsECSTables {
		structure = append(structure, &core.Structure{
			Name:        t.Name,
			Description: t.Description,
			Type:        core.StructureTypeTable,
		})
	}

	commands := &core.Structure{
		Name: "commands",
		Type: core.StructureTypeNone,
	}
	for _, c := range awsECSCommands {
		commands.Children = append(commands.Children, &core.Structure{
			Name:        c.Usage,
			Description: c.Description,
			Type:        core.StructureTypeCommand,
		})
	}

	return append(structure, commands), nil
}

func (d *awsECSDriver) Columns(_ context.Context, table string) ([]*core.Column, error) {
	t, err := awsECSTable(table)
	if err != nil {
		return nil, err
	}

	columns := make([]*core.Column, len(t.Columns))
	for i, c := range t.Columns {
		columns[i] = &core.Column{
			Name:        c.Name,
			Type:        c.Type,
			Description: c.Description,
		}
	}
	return columns, nil
}

// Ping describes the configured cluster. A missing cluster or a rejected
// call reports an unhealthy connection, bad credentials fail.
func (d *awsECSDriver) Ping(ctx context.Context) (bool, error) {
	out, err := d.api.DescribeClusters(ctx, &ecs.DescribeClustersInput{
		Clusters: []string{d.cluster},
	})
	if err != nil {
		err = awsError("health check", err)
		if errors.Is(err, core.ErrRemote) {
			d.log.WithError(err).Warn("health check returned an error")
			return false, nil
		}
		return false, err
	}

	if len(out.Clusters) == 0 {
		d.log.WithField("cluster", d.cluster).Warn("health check: cluster not found")
		return false, nil
	}
	return true, nil
}

func (d *awsECSDriver) Close() {}

func (d *awsECSDriver) selectRows(ctx context.Context, query *core.Query) (core.ResultStream, error) {
	t, err := awsECSTable(query.Table)
	if err != nil {
		return nil, err
	}

	search, err := query.SearchParams(d.config.MaxRows)
	if err != nil {
		return nil, err
	}
	if search.NumberOfResults < 1 {
		return nil, core.Errorf(core.ErrValidation, "select", "row limit must be positive, got %d", search.NumberOfResults)
	}

	projection := make([]string, len(query.Projection))
	for i, name := range query.Projection {
		projection[i] = t.fieldName(name)
	}
	header, project, err := projector(t.Table, projection)
	if err != nil {
		return nil, err
	}

	var (
		residual []core.Predicate
		id       string
		hasID    bool
	)
	for _, p := range query.Predicates {
		switch {
		case p.Field == core.FieldNumberOfResults:
			// consumed by search params
		case core.IsReserved(p.Field):
			return nil, core.Errorf(core.ErrValidation, "select", "table %q does not support the %q predicate", t.Name, p.Field)
		default:
			p.Field = t.fieldName(p.Field)
			if !hasID && p.Field == t.idField() && p.Operator == core.OpEqual {
				id = fmtValue(p.Value)
				hasID = true
				continue
			}
			residual = append(residual, p)
		}
	}

	filter, err := newResidualFilter(t.Table, residual)
	if err != nil {
		return nil, err
	}

	log := d.log.WithFields(logrus.Fields{
		"op":    "select",
		"table": t.Name,
	})

	var rows []core.Row
	if hasID {
		items, err := t.describe(d, ctx, []string{id})
		if err != nil {
			return nil, err
		}
		rows = matchRows(items, t.Columns, filter, search.NumberOfResults, nil)
	} else {
		rows, err = d.fetchPages(ctx, t, filter, search.NumberOfResults, log)
		if err != nil {
			return nil, err
		}
	}

	for i := range rows {
		rows[i] = project(rows[i])
	}

	log.WithField("rows", len(rows)).Debug("select done")

	return resultStream(t.Name, header, rows), nil
}

// fetchPages lists resource pages and describes each of them until limit
// rows matched, the listing ends or the scan bound is hit.
func (d *awsECSDriver) fetchPages(ctx context.Context, t *awsTable, filter *residualFilter, limit int, log logrus.FieldLogger) ([]core.Row, error) {
	rows := []core.Row{}
	scanned := 0
	maxScanned := d.config.MaxRows * scanFactor

	var token *string
	for pages := 1; ; pages++ {
		n := min(d.config.PageSize, awsListMax)
		if remaining := limit - len(rows); filter.empty() && remaining < n {
			n = remaining
		}

		arns, next, err := t.list(d, ctx, token, int32(n))
		if err != nil {
			return nil, err
		}

		var items []map[string]any
		if len(arns) > 0 {
			items, err = t.describe(d, ctx, arns)
			if err != nil {
				return nil, err
			}
		}
		rows = matchRows(items, t.Columns, filter, limit, rows)
		scanned += len(arns)

		log.WithFields(logrus.Fields{
			"page":  pages,
			"items": len(arns),
			"rows":  len(rows),
		}).Debug("fetched page")

		if len(rows) >= limit || aws.ToString(next) == "" {
			return rows, nil
		}
		if scanned >= maxScanned {
			log.WithField("scanned", scanned).Warn("scan bound reached, result may be incomplete")
			return rows, nil
		}
		token = next
	}
}

// matchRows appends the items matching filter to rows, up to limit.
func matchRows(items []map[string]any, columns []*Column, filter *residualFilter, limit int, rows []core.Row) []core.Row {
	if rows == nil {
		rows = []core.Row{}
	}
	for _, item := range items {
		if len(rows) >= limit {
			break
		}
		row := mapRow(item, columns)
		if filter.match(row) {
			rows = append(rows, row)
		}
	}
	return rows
}

func (d *awsECSDriver) listClusters(ctx context.Context, token *string, n int32) ([]string, *string, error) {
	out, err := d.api.ListClusters(ctx, &ecs.ListClustersInput{
		MaxResults: aws.Int32(n),
		NextToken:  token,
	})
	if err != nil {
		return nil, nil, awsError("list clusters", err)
	}
	return out.ClusterArns, out.NextToken, nil
}

func (d *awsECSDriver) describeClusters(ctx context.Context, ids []string) ([]map[string]any, error) {
	items := []map[string]any{}
	for chunk := range slices.Chunk(ids, awsListMax) {
		out, err := d.api.DescribeClusters(ctx, &ecs.DescribeClustersInput{
			Clusters: chunk,
			Include:  []types.ClusterField{types.ClusterFieldTags},
		})
		if err != nil {
			return nil, awsError("describe clusters", err)
		}
		for _, c := range out.Clusters {
			items = append(items, clusterItem(c))
		}
	}
	return items, nil
}

func (d *awsECSDriver) listServices(ctx context.Context, token *string, n int32) ([]string, *string, error) {
	out, err := d.api.ListServices(ctx, &ecs.ListServicesInput{
		Cluster:    aws.String(d.cluster),
		MaxResults: aws.Int32(n),
		NextToken:  token,
	})
	if err != nil {
		return nil, nil, awsError("list services", err)
	}
	return out.ServiceArns, out.NextToken, nil
}

func (d *awsECSDriver) describeServices(ctx context.Context, ids []string) ([]map[string]any, error) {
	items := []map[string]any{}
	for chunk := range slices.Chunk(ids, awsDescribeServicesMax) {
		out, err := d.api.DescribeServices(ctx, &ecs.DescribeServicesInput{
			Cluster:  aws.String(d.cluster),
			Services: chunk,
			Include:  []types.ServiceField{types.ServiceFieldTags},
		})
		if err != nil {
			return nil, awsError("describe services", err)
		}
		for _, s := range out.Services {
			items = append(items, serviceItem(s))
		}
	}
	return items, nil
}

func (d *awsECSDriver) listTasks(ctx context.Context, token *string, n int32) ([]string, *string, error) {
	out, err := d.api.ListTasks(ctx, &ecs.ListTasksInput{
		Cluster:    aws.String(d.cluster),
		MaxResults: aws.Int32(n),
		NextToken:  token,
	})
	if err != nil {
		return nil, nil, awsError("list tasks", err)
	}
	return out.TaskArns, out.NextToken, nil
}

func (d *awsECSDriver) describeTasks(ctx context.Context, ids []string) ([]map[string]any, error) {
	items := []map[string]any{}
	for chunk := range slices.Chunk(ids, awsListMax) {
		out, err := d.api.DescribeTasks(ctx, &ecs.DescribeTasksInput{
			Cluster: aws.String(d.cluster),
			Tasks:   chunk,
			Include: []types.TaskField{types.TaskFieldTags},
		})
		if err != nil {
			return nil, awsError("describe tasks", err)
		}
		for _, t := range out.Tasks {
			items = append(items, taskItem(t))
		}
	}
	return items, nil
}

func clusterItem(c types.Cluster) map[string]any {
	return map[string]any{
		"clusterArn":                        aws.ToString(c.ClusterArn),
		"clusterName":                       aws.ToString(c.ClusterName),
		"status":                            aws.ToString(c.Status),
		"activeServicesCount":               int(c.ActiveServicesCount),
		"runningTasksCount":                 int(c.RunningTasksCount),
		"pendingTasksCount":                 int(c.PendingTasksCount),
		"registeredContainerInstancesCount": int(c.RegisteredContainerInstancesCount),
		"capacityProviders":                 plain(c.CapacityProviders),
		"defaultCapacityProviderStrategy":   plain(c.DefaultCapacityProviderStrategy),
		"tags":                              tagMap(c.Tags),
	}
}

func serviceItem(s types.Service) map[string]any {
	return map[string]any{
		"serviceArn":              aws.ToString(s.ServiceArn),
		"serviceName":             aws.ToString(s.ServiceName),
		"status":                  aws.ToString(s.Status),
		"desiredCount":            int(s.DesiredCount),
		"runningCount":            int(s.RunningCount),
		"pendingCount":            int(s.PendingCount),
		"launchType":              nonEmpty(string(s.LaunchType)),
		"taskDefinition":          aws.ToString(s.TaskDefinition),
		"deploymentConfiguration": plain(s.DeploymentConfiguration),
		"events":                  plain(s.Events),
		"tags":                    tagMap(s.Tags),
	}
}

// taskItem maps a task. The api has no plain status, it is the last status.
func taskItem(t types.Task) map[string]any {
	return map[string]any{
		"taskArn":        aws.ToString(t.TaskArn),
		"taskDefinition": aws.ToString(t.TaskDefinitionArn),
		"status":         aws.ToString(t.LastStatus),
		"startedAt":      timestamp(t.StartedAt),
		"stoppedAt":      timestamp(t.StoppedAt),
		"launchType":     nonEmpty(string(t.LaunchType)),
		"containers":     plain(t.Containers),
		"lastStatus":     aws.ToString(t.LastStatus),
		"desiredStatus":  aws.ToString(t.DesiredStatus),
		"cpu":            aws.ToString(t.Cpu),
		"memory":         aws.ToString(t.Memory),
		"tags":           tagMap(t.Tags),
	}
}

func tagMap(tags []types.Tag) map[string]any {
	out := make(map[string]any, len(tags))
	for _, t := range tags {
		out[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return out
}

func timestamp(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// plain converts sdk structs to the generic json values other backends return.
func plain(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	out, err := decodeAny(b)
	if err != nil {
		return nil
	}
	return out
}

// awsError classifies an sdk error. Api errors carry the error code and the
// http status, failures without a response are network errors.
func awsError(op string, err error) error {
	status := 0
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		kind := core.ErrRemote
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnrecognizedClientException", "InvalidSignatureException",
			"ExpiredTokenException", "IncompleteSignature", "MissingAuthenticationToken":
			kind = core.ErrAuthentication
		}
		return &core.Error{
			Kind:       kind,
			Op:         op,
			StatusCode: status,
			Err:        fmt.Errorf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage()),
		}
	}

	return &core.Error{
		Kind:       core.ErrNetwork,
		Op:         op,
		StatusCode: status,
		Err:        err,
	}
}

// awsCommand is a native command of the aws_ecs backend.
type awsCommand struct {
	Name        string
	Usage       string
	Description string
	run         func(ctx context.Context, d *awsECSDriver, args []string) ([]map[string]any, error)
}

var awsECSCommands = []*awsCommand{
	{
		Name:        "list-clusters",
		Usage:       "list-clusters [--max-results N]",
		Description: "describe the clusters of the account",
		run:         listCommand("clusters"),
	},
	{
		Name:        "list-services",
		Usage:       "list-services [--max-results N]",
		Description: "describe the services of the cluster",
		run:         listCommand("services"),
	},
	{
		Name:        "list-tasks",
		Usage:       "list-tasks [--max-results N]",
		Description: "describe the tasks of the cluster",
		run:         listCommand("tasks"),
	},
	{
		Name:        "get-cluster",
		Usage:       "get-cluster",
		Description: "describe the configured cluster",
		run: func(ctx context.Context, d *awsECSDriver, args []string) ([]map[string]any, error) {
			if err := exactArgs("get-cluster", args, 0); err != nil {
				return nil, err
			}
			return d.describeClusters(ctx, []string{d.cluster})
		},
	},
	{
		Name:        "get-service",
		Usage:       "get-service <name>",
		Description: "describe a single service",
		run: func(ctx context.Context, d *awsECSDriver, args []string) ([]map[string]any, error) {
			if err := exactArgs("get-service", args, 1); err != nil {
				return nil, err
			}
			return d.describeServices(ctx, args)
		},
	},
	{
		Name:        "get-task",
		Usage:       "get-task <arn>",
		Description: "describe a single task",
		run: func(ctx context.Context, d *awsECSDriver, args []string) ([]map[string]any, error) {
			if err := exactArgs("get-task", args, 1); err != nil {
				return nil, err
			}
			return d.describeTasks(ctx, args)
		},
	},
}

// listCommand lists one page of the table's resources and describes them.
func listCommand(table string) func(ctx context.Context, d *awsECSDriver, args []string) ([]map[string]any, error) {
	return func(ctx context.Context, d *awsECSDriver, args []string) ([]map[string]any, error) {
		n, err := maxResults(args)
		if err != nil {
			return nil, err
		}

		t, err := awsECSTable(table)
		if err != nil {
			return nil, err
		}
		arns, _, err := t.list(d, ctx, nil, int32(n))
		if err != nil {
			return nil, err
		}
		if len(arns) == 0 {
			return []map[string]any{}, nil
		}
		return t.describe(d, ctx, arns)
	}
}

// maxResults parses the optional --max-results flag, 100 by default.
func maxResults(args []string) (int, error) {
	n := awsListMax
	for i := 0; i < len(args); i++ {
		value, ok := strings.CutPrefix(args[i], "--max-results=")
		if !ok {
			if args[i] != "--max-results" || i+1 >= len(args) {
				return 0, core.Errorf(core.ErrValidation, "parse arguments", "unexpected argument %q (usage: --max-results N)", args[i])
			}
			i++
			value = args[i]
		}

		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 1 || parsed > awsListMax {
			return 0, core.Errorf(core.ErrValidation, "parse arguments", "--max-results must be between 1 and %d, got %q", awsListMax, value)
		}
		n = parsed
	}
	return n, nil
}

func exactArgs(name string, args []string, n int) error {
	if len(args) != n {
		return core.Errorf(core.ErrValidation, "native "+name, "expected %d arguments, got %d", n, len(args))
	}
	return nil
}

// runNative executes a native command. Arguments are checked before any call.
func (d *awsECSDriver) runNative(ctx context.Context, name string, args []string) (core.ResultStream, error) {
	var cmd *awsCommand
	for _, c := range awsECSCommands {
		if c.Name == name {
			cmd = c
			break
		}
	}
	if cmd == nil {
		return nil, core.Errorf(core.ErrUnsupportedOperation, "native", "unknown command: %q", name)
	}

	d.log.WithFields(logrus.Fields{
		"op":      "native",
		"command": cmd.Name,
	}).Debug("running native command")

	items, err := cmd.run(ctx, d, args)
	if err != nil {
		return nil, err
	}

	header, rows := rowsFromObjects(items)
	return builders.FromRows(header, rows, &core.Meta{SchemaType: core.SchemaLess}), nil
}
