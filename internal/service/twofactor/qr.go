package twofactor

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const qrImageSize = 256

// QRCodeDataURI renders the provisioning URI as a scannable PNG
// packed into an embeddable data URI. Rendering can only fail on the
// server side, so the error is a plain internal fault, never a user error
func (e *Engine) QRCodeDataURI(secret string, account string) (string, error) {
	png, err := qrcode.Encode(e.ProvisioningURI(secret, account), qrcode.Medium, qrImageSize)
	if err != nil {
		return "", fmt.Errorf("error while rendering provisioning qr code. Err: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
