package pilesdk

import (
	"fmt"
	"runtime"
	"time"

	"github.com/imroc/req/v3"
	"github.com/pilehq/pilebox/internal/utils"
	"github.com/pilehq/pilebox/internal/version"
)

const (
	HeaderUserAgent    = "User-Agent"
	HeaderPileVersion  = "X-Pile-Version"
	HeaderPileDeviceId = "X-Pile-Device-Id"
)

var PileboxUserAgent = fmt.Sprintf("Pilebox/%s (%s; %s; %s)", version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// newHTTPClient builds the base HTTP client with common values set
func newHTTPClient() *req.Client {
	return req.C().
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1*time.Second).
		SetUserAgent(PileboxUserAgent).
		SetCommonHeader(HeaderPileVersion, version.Version).
		SetCommonHeader(HeaderPileDeviceId, utils.HWID).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)
}
