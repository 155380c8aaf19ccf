package httpclient

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/clbanning/mxj/v2"
	"github.com/valyala/fasthttp"
)

// ErrFault is wrapped by errors for fault responses.
var ErrFault = errors.New("xml-rpc fault")

const iso8601 = "20060102T15:04:05"

// Fault is an XML-RPC fault response.
type Fault struct {
	Code    int
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("xml-rpc fault %d: %s", f.Code, f.Message)
}

func (f *Fault) Unwrap() error { return ErrFault }

// XMLRPCClient calls methods on one XML-RPC endpoint over the shared
// connection pool of its Client.
type XMLRPCClient struct {
	endpoint string
	client   *Client
}

// XMLRPC returns a caller for endpoint.
func (c *Client) XMLRPC(endpoint string) *XMLRPCClient {
	return &XMLRPCClient{endpoint: endpoint, client: c}
}

// Call invokes method with params and returns the decoded result.
// Results decode to string, int64, bool, float64, time.Time, []byte,
// []any or map[string]any.
func (x *XMLRPCClient) Call(ctx context.Context, method string, params ...any) (any, error) {
	body, err := EncodeCall(method, params...)
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(x.endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("text/xml")
	req.SetBody(body)

	res, err := x.client.do(ctx, req, Options{ReturnErrors: true})
	if err != nil {
		return nil, err
	}
	return DecodeResponse(res.Body)
}

// EncodeCall renders a methodCall document.
func EncodeCall(method string, params ...any) ([]byte, error) {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString("<methodCall><methodName>")
	if err := xml.EscapeText(&sb, []byte(method)); err != nil {
		return nil, err
	}
	sb.WriteString("</methodName><params>")
	for i, p := range params {
		sb.WriteString("<param>")
		if err := writeValue(&sb, reflect.ValueOf(p)); err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		sb.WriteString("</param>")
	}
	sb.WriteString("</params></methodCall>")
	return []byte(sb.String()), nil
}

var (
	timeType  = reflect.TypeOf(time.Time{})
	bytesType = reflect.TypeOf([]byte(nil))
)

func writeValue(sb *strings.Builder, v reflect.Value) error {
	if !v.IsValid() {
		return errors.New("nil values are not representable")
	}
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return errors.New("nil values are not representable")
		}
		v = v.Elem()
	}

	sb.WriteString("<value>")
	switch {
	case v.Type() == timeType:
		fmt.Fprintf(sb, "<dateTime.iso8601>%s</dateTime.iso8601>", v.Interface().(time.Time).Format(iso8601))
	case v.Type() == bytesType:
		fmt.Fprintf(sb, "<base64>%s</base64>", base64.StdEncoding.EncodeToString(v.Bytes()))
	default:
		switch v.Kind() {
		case reflect.String:
			sb.WriteString("<string>")
			if err := xml.EscapeText(sb, []byte(v.String())); err != nil {
				return err
			}
			sb.WriteString("</string>")
		case reflect.Bool:
			if v.Bool() {
				sb.WriteString("<boolean>1</boolean>")
			} else {
				sb.WriteString("<boolean>0</boolean>")
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			writeInt(sb, v.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			u := v.Uint()
			if u > math.MaxInt64 {
				return fmt.Errorf("integer %d out of range", u)
			}
			writeInt(sb, int64(u))
		case reflect.Float32, reflect.Float64:
			fmt.Fprintf(sb, "<double>%s</double>", strconv.FormatFloat(v.Float(), 'f', -1, 64))
		case reflect.Slice, reflect.Array:
			sb.WriteString("<array><data>")
			for i := 0; i < v.Len(); i++ {
				if err := writeValue(sb, v.Index(i)); err != nil {
					return err
				}
			}
			sb.WriteString("</data></array>")
		case reflect.Map:
			if v.Type().Key().Kind() != reflect.String {
				return fmt.Errorf("struct keys must be strings, got %s", v.Type().Key())
			}
			keys := make([]string, 0, v.Len())
			for _, k := range v.MapKeys() {
				keys = append(keys, k.String())
			}
			sort.Strings(keys)
			sb.WriteString("<struct>")
			for _, k := range keys {
				sb.WriteString("<member><name>")
				if err := xml.EscapeText(sb, []byte(k)); err != nil {
					return err
				}
				sb.WriteString("</name>")
				if err := writeValue(sb, v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key()))); err != nil {
					return fmt.Errorf("member %s: %w", k, err)
				}
				sb.WriteString("</member>")
			}
			sb.WriteString("</struct>")
		default:
			return fmt.Errorf("unsupported type %s", v.Type())
		}
	}
	sb.WriteString("</value>")
	return nil
}

func writeInt(sb *strings.Builder, n int64) {
	if n >= math.MinInt32 && n <= math.MaxInt32 {
		fmt.Fprintf(sb, "<int>%d</int>", n)
		return
	}
	fmt.Fprintf(sb, "<i8>%d</i8>", n)
}

// DecodeResponse parses a methodResponse document. A fault is returned as
// a *Fault error.
func DecodeResponse(body []byte) (any, error) {
	m, err := mxj.NewMapXml(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode XML-RPC response: %w", err)
	}

	if fault, err := m.ValueForPath("methodResponse.fault.value"); err == nil {
		v, err := decodeXMLValue(fault)
		if err != nil {
			return nil, fmt.Errorf("malformed fault: %w", err)
		}
		return nil, toFault(v)
	}

	value, err := m.ValueForPath("methodResponse.params.param.value")
	if err != nil {
		return nil, fmt.Errorf("XML-RPC response has no result: %w", err)
	}
	return decodeXMLValue(value)
}

func toFault(v any) *Fault {
	f := &Fault{}
	fields, _ := v.(map[string]any)
	if code, ok := fields["faultCode"].(int64); ok {
		f.Code = int(code)
	}
	f.Message, _ = fields["faultString"].(string)
	return f
}

// decodeXMLValue converts the mxj form of a <value> element.
func decodeXMLValue(node any) (any, error) {
	switch t := node.(type) {
	case string:
		return t, nil
	case map[string]any:
		if len(t) != 1 {
			return nil, fmt.Errorf("value must hold one element, got %d", len(t))
		}
		for kind, inner := range t {
			return decodeTyped(kind, inner)
		}
	}
	return nil, fmt.Errorf("unexpected value node %T", node)
}

func decodeTyped(kind string, inner any) (any, error) {
	if kind == "array" {
		return decodeArray(inner)
	}
	if kind == "struct" {
		return decodeStruct(inner)
	}

	text, _ := inner.(string)
	text = strings.TrimSpace(text)
	switch kind {
	case "string":
		s, _ := inner.(string)
		return s, nil
	case "int", "i4", "i8":
		return strconv.ParseInt(text, 10, 64)
	case "boolean":
		switch text {
		case "1":
			return true, nil
		case "0":
			return false, nil
		}
		return nil, fmt.Errorf("invalid boolean %q", text)
	case "double":
		return strconv.ParseFloat(text, 64)
	case "dateTime.iso8601":
		return time.Parse(iso8601, text)
	case "base64":
		return base64.StdEncoding.DecodeString(text)
	case "nil":
		return nil, nil
	}
	return nil, fmt.Errorf("unsupported value type %q", kind)
}

// asList normalizes mxj's single-child-or-slice shape.
func asList(node any) []any {
	switch t := node.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}

func decodeArray(inner any) (any, error) {
	out := []any{}
	array, ok := inner.(map[string]any)
	if !ok {
		return out, nil
	}
	data, ok := array["data"].(map[string]any)
	if !ok {
		return out, nil
	}
	for _, item := range asList(data["value"]) {
		v, err := decodeXMLValue(item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeStruct(inner any) (any, error) {
	out := map[string]any{}
	st, ok := inner.(map[string]any)
	if !ok {
		return out, nil
	}
	for _, item := range asList(st["member"]) {
		member, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected member node %T", item)
		}
		name, _ := member["name"].(string)
		v, err := decodeXMLValue(member["value"])
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}
