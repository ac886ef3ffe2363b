// Package dynamotest provides an in-memory DynamoDB fake for unit tests.
// It interprets only the expression subset the engine actually issues:
// attribute_exists / attribute_not_exists / equality / >= conditions, and
// SET/ADD update expressions with arithmetic on a single attribute.
// Transactions are all-or-nothing under a single mutex, which is what makes
// the concurrency tests meaningful.
package dynamotest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TableSpec names the key attributes of a fake table.
type TableSpec struct {
	PK string
	SK string
}

// Fake is an in-memory DynamoDB good enough for the engine's access patterns.
type Fake struct {
	mu     sync.Mutex
	specs  map[string]TableSpec
	tables map[string]map[string]map[string]types.AttributeValue

	PutCalls      int
	UpdateCalls   int
	TransactCalls int
}

// New builds a Fake with the given table specs.
func New(specs map[string]TableSpec) *Fake {
	tables := make(map[string]map[string]map[string]types.AttributeValue, len(specs))
	for name := range specs {
		tables[name] = map[string]map[string]types.AttributeValue{}
	}
	return &Fake{specs: specs, tables: tables}
}

// Seed inserts an item directly, bypassing conditions.
func (f *Fake) Seed(table string, item map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, err := f.itemKey(table, item)
	if err != nil {
		panic(err)
	}
	f.tables[table][k] = item
}

// Item returns the raw stored item for assertions, or nil.
func (f *Fake) Item(table string, keyParts ...string) map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tables[table][strings.Join(keyParts, "|")]
}

// Len reports the number of items in a table.
func (f *Fake) Len(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[table])
}

func (f *Fake) itemKey(table string, item map[string]types.AttributeValue) (string, error) {
	spec, ok := f.specs[table]
	if !ok {
		return "", fmt.Errorf("dynamotest: unknown table %q", table)
	}
	pk, err := stringValue(item[spec.PK])
	if err != nil {
		return "", fmt.Errorf("dynamotest: table %q pk %q: %w", table, spec.PK, err)
	}
	if spec.SK == "" {
		return pk, nil
	}
	sk, err := stringValue(item[spec.SK])
	if err != nil {
		return "", fmt.Errorf("dynamotest: table %q sk %q: %w", table, spec.SK, err)
	}
	return pk + "|" + sk, nil
}

func stringValue(av types.AttributeValue) (string, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return v.Value, nil
	case nil:
		return "", errors.New("missing key attribute")
	default:
		return "", fmt.Errorf("unsupported key attribute %T", av)
	}
}

func numValue(av types.AttributeValue) (int64, bool) {
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// GetItem implements awsx.DynamoDBAPI.
func (f *Fake) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, err := f.itemKey(*params.TableName, params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := f.tables[*params.TableName][k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

// Scan implements awsx.DynamoDBAPI. Filters are not supported.
func (f *Fake) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &dyn.ScanOutput{}
	for _, item := range f.tables[*params.TableName] {
		out.Items = append(out.Items, item)
	}
	count := int32(len(out.Items))
	out.Count = count
	return out, nil
}

// PutItem implements awsx.DynamoDBAPI with condition support.
func (f *Fake) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PutCalls++
	if err := f.applyPut(*params.TableName, params.Item, params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, false); err != nil {
		return nil, err
	}
	return &dyn.PutItemOutput{}, nil
}

// UpdateItem implements awsx.DynamoDBAPI with condition + SET/ADD support.
func (f *Fake) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++
	item, err := f.applyUpdate(*params.TableName, params.Key, params.UpdateExpression, params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, false)
	if err != nil {
		return nil, err
	}
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

// TransactWriteItems validates every condition against the current state and
// only then applies all writes, mirroring DynamoDB's all-or-nothing contract.
func (f *Fake) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TransactCalls++

	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	for i, it := range params.TransactItems {
		code := "None"
		switch {
		case it.Put != nil:
			if err := f.applyPut(*it.Put.TableName, it.Put.Item, it.Put.ConditionExpression, it.Put.ExpressionAttributeNames, it.Put.ExpressionAttributeValues, true); err != nil {
				code = "ConditionalCheckFailed"
			}
		case it.Update != nil:
			if _, err := f.applyUpdate(*it.Update.TableName, it.Update.Key, it.Update.UpdateExpression, it.Update.ConditionExpression, it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues, true); err != nil {
				code = "ConditionalCheckFailed"
			}
		}
		if code != "None" {
			failed = true
		}
		c := code
		reasons[i] = types.CancellationReason{Code: &c}
	}
	if failed {
		return nil, &types.TransactionCanceledException{CancellationReasons: reasons}
	}

	for _, it := range params.TransactItems {
		switch {
		case it.Put != nil:
			_ = f.applyPut(*it.Put.TableName, it.Put.Item, it.Put.ConditionExpression, it.Put.ExpressionAttributeNames, it.Put.ExpressionAttributeValues, false)
		case it.Update != nil:
			_, _ = f.applyUpdate(*it.Update.TableName, it.Update.Key, it.Update.UpdateExpression, it.Update.ConditionExpression, it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues, false)
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

var errConditionFailed = &types.ConditionalCheckFailedException{}

func (f *Fake) applyPut(table string, item map[string]types.AttributeValue, cond *string, names map[string]string, values map[string]types.AttributeValue, dryRun bool) error {
	k, err := f.itemKey(table, item)
	if err != nil {
		return err
	}
	existing := f.tables[table][k]
	if cond != nil && !evalCondition(*cond, existing, names, values) {
		return errConditionFailed
	}
	if !dryRun {
		f.tables[table][k] = item
	}
	return nil
}

func (f *Fake) applyUpdate(table string, key map[string]types.AttributeValue, updateExpr, cond *string, names map[string]string, values map[string]types.AttributeValue, dryRun bool) (map[string]types.AttributeValue, error) {
	k, err := f.itemKey(table, key)
	if err != nil {
		return nil, err
	}
	existing, ok := f.tables[table][k]
	if cond != nil && !evalCondition(*cond, existing, names, values) {
		return nil, errConditionFailed
	}
	if dryRun {
		return existing, nil
	}
	if !ok {
		// DynamoDB upserts on update; start from the key attrs
		existing = map[string]types.AttributeValue{}
		for attr, av := range key {
			existing[attr] = av
		}
	}
	if updateExpr != nil {
		applyUpdateExpression(*updateExpr, existing, names, values)
	}
	f.tables[table][k] = existing
	return existing, nil
}

// evalCondition handles the single-clause expressions the engine issues.
func evalCondition(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) bool {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "attribute_not_exists(") {
		attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(expr, "attribute_not_exists("), ")"), names)
		if item == nil {
			return true
		}
		_, ok := item[attr]
		return !ok
	}
	if strings.HasPrefix(expr, "attribute_exists(") {
		attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(expr, "attribute_exists("), ")"), names)
		if item == nil {
			return false
		}
		_, ok := item[attr]
		return ok
	}
	if parts := strings.Split(expr, ">="); len(parts) == 2 {
		attr := resolveName(strings.TrimSpace(parts[0]), names)
		if item == nil {
			return false
		}
		have, ok1 := numValue(item[attr])
		want, ok2 := numValue(values[strings.TrimSpace(parts[1])])
		return ok1 && ok2 && have >= want
	}
	if parts := strings.Split(expr, "="); len(parts) == 2 {
		attr := resolveName(strings.TrimSpace(parts[0]), names)
		if item == nil {
			return false
		}
		have, err := stringValue(item[attr])
		if err != nil {
			return false
		}
		want, err := stringValue(values[strings.TrimSpace(parts[1])])
		return err == nil && have == want
	}
	panic(fmt.Sprintf("dynamotest: unsupported condition expression %q", expr))
}

// applyUpdateExpression supports "SET a = :v, b = b - :w" and "ADD c :n" forms.
func applyUpdateExpression(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) {
	for _, section := range splitSections(expr) {
		switch {
		case strings.HasPrefix(section, "SET "):
			for _, assign := range strings.Split(strings.TrimPrefix(section, "SET "), ",") {
				parts := strings.SplitN(assign, "=", 2)
				attr := resolveName(strings.TrimSpace(parts[0]), names)
				item[attr] = evalOperand(strings.TrimSpace(parts[1]), item, names, values)
			}
		case strings.HasPrefix(section, "ADD "):
			for _, add := range strings.Split(strings.TrimPrefix(section, "ADD "), ",") {
				fields := strings.Fields(strings.TrimSpace(add))
				attr := resolveName(fields[0], names)
				cur, _ := numValue(item[attr])
				delta, _ := numValue(values[fields[1]])
				item[attr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(cur+delta, 10)}
			}
		default:
			panic(fmt.Sprintf("dynamotest: unsupported update section %q", section))
		}
	}
}

func splitSections(expr string) []string {
	var out []string
	for _, kw := range []string{"SET ", "ADD "} {
		if idx := strings.Index(expr, kw); idx >= 0 {
			end := len(expr)
			for _, other := range []string{"SET ", "ADD "} {
				if other == kw {
					continue
				}
				if j := strings.Index(expr, other); j > idx && j < end {
					end = j
				}
			}
			out = append(out, strings.TrimSpace(expr[idx:end]))
		}
	}
	return out
}

func evalOperand(operand string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) types.AttributeValue {
	for _, op := range []string{"-", "+"} {
		if parts := strings.Split(operand, " "+op+" "); len(parts) == 2 {
			left, _ := numValue(item[resolveName(strings.TrimSpace(parts[0]), names)])
			right, _ := numValue(values[strings.TrimSpace(parts[1])])
			if op == "-" {
				right = -right
			}
			return &types.AttributeValueMemberN{Value: strconv.FormatInt(left+right, 10)}
		}
	}
	if strings.HasPrefix(operand, ":") {
		return values[operand]
	}
	return item[resolveName(operand, names)]
}

func resolveName(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		if resolved, ok := names[name]; ok {
			return resolved
		}
	}
	return name
}
