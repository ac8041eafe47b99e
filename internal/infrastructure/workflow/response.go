package workflow

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
)

const businessSuccessCode = 200

// Result 业务成功的响应
type Result struct {
	Code    int64
	Message string
	// Data 响应中的 data 字段，已展开为 JSON；字段缺失时为 nil
	Data     json.RawMessage
	Attempts int
}

// Get 按 gjson 路径读取 data 中的字段
func (r *Result) Get(path string) gjson.Result {
	if r == nil || len(r.Data) == 0 {
		return gjson.Result{}
	}
	return gjson.GetBytes(r.Data, path)
}

// parseResponse 解析 {code, message, data}，data 可能是对象，也可能是 JSON 编码后的字符串
func parseResponse(raw []byte) (*Result, error) {
	if !gjson.ValidBytes(raw) {
		return nil, &Error{Kind: KindParse, Message: "response is not valid JSON"}
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, &Error{Kind: KindParse, Message: "response is not a JSON object"}
	}

	code := root.Get("code")
	message := root.Get("message").String()
	if !code.Exists() || code.Type != gjson.Number {
		return nil, &Error{Kind: KindBusiness, Message: orDefault(message, "missing business code")}
	}
	if code.Int() != businessSuccessCode {
		return nil, &Error{Kind: KindBusiness, Code: code.Int(), Message: orDefault(message, "unknown error")}
	}

	data, err := unwrapData(root.Get("data"))
	if err != nil {
		return nil, &Error{Kind: KindParse, Message: "invalid data field", Err: err}
	}
	return &Result{Code: code.Int(), Message: message, Data: data}, nil
}

func unwrapData(data gjson.Result) (json.RawMessage, error) {
	switch {
	case !data.Exists() || data.Type == gjson.Null:
		return nil, nil
	case data.Type == gjson.String:
		s := strings.TrimSpace(data.String())
		if s == "" {
			return nil, nil
		}
		if s[0] == '{' || s[0] == '[' {
			if !gjson.Valid(s) {
				return nil, errors.New("data string is not valid JSON")
			}
			return json.RawMessage(s), nil
		}
		// 普通字符串原样保留
		return json.RawMessage(data.Raw), nil
	default:
		return json.RawMessage(data.Raw), nil
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
