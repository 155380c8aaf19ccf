package httputil

import (
	"encoding/json"

	"github.com/clbanning/mxj/v2"
	"github.com/valyala/fasthttp"
)

// Result keys and the default XML root element.
const (
	KeyResultCode    = "resultCode"
	KeyResultMessage = "resultMessage"
	DefaultXMLRoot   = "Result"
)

// Result builds {"resultCode": code, "resultMessage": msg} merged with extra.
// Keys in extra override the two result keys.
func Result(code int, msg string, extra map[string]any) map[string]any {
	res := make(map[string]any, len(extra)+2)
	res[KeyResultCode] = code
	res[KeyResultMessage] = msg
	for k, v := range extra {
		res[k] = v
	}
	return res
}

// ResultXML renders Result as an XML document under root.
func ResultXML(root string, code int, msg string, extra map[string]any) ([]byte, error) {
	if root == "" {
		root = DefaultXMLRoot
	}
	return mxj.Map(Result(code, msg, extra)).Xml(root)
}

// JSONResponse writes data as a JSON body with statusCode.
func JSONResponse(ctx *fasthttp.RequestCtx, data any, statusCode int) {
	body, err := json.Marshal(data)
	if err != nil {
		ctx.Error(`{"resultCode":-1,"resultMessage":"response encoding failed"}`, fasthttp.StatusInternalServerError)
		ctx.SetContentType("application/json")
		return
	}
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

// WriteResult writes a JSON result document.
func WriteResult(ctx *fasthttp.RequestCtx, statusCode, code int, msg string, extra map[string]any) {
	JSONResponse(ctx, Result(code, msg, extra), statusCode)
}

// WriteResultXML writes an XML result document under the default root.
func WriteResultXML(ctx *fasthttp.RequestCtx, statusCode, code int, msg string, extra map[string]any) {
	body, err := ResultXML(DefaultXMLRoot, code, msg, extra)
	if err != nil {
		ctx.Error("response encoding failed", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(statusCode)
	ctx.SetContentType("application/xml")
	ctx.SetBody(body)
}

// JSONError writes a failed result with code -1.
func JSONError(ctx *fasthttp.RequestCtx, message string, statusCode int) {
	WriteResult(ctx, statusCode, -1, message, nil)
}
