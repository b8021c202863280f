package domain

// MaFile is the JSON boundary record shared with Steam Desktop
// Authenticator exports. Field names and base64 encoding follow the .maFile
// format exactly so files round-trip between tools without loss.
type MaFile struct {
	AccountName    string        `json:"account_name"`
	SteamID        string        `json:"steamid"`
	SharedSecret   string        `json:"shared_secret"`
	IdentitySecret string        `json:"identity_secret"`
	DeviceID       string        `json:"device_id"`
	RevocationCode string        `json:"revocation_code,omitempty"`
	SerialNumber   string        `json:"serial_number,omitempty"`
	URI            string        `json:"uri,omitempty"`
	TokenGID       string        `json:"token_gid,omitempty"`
	Session        MaFileSession `json:"session"`
}

// MaFileSession mirrors the nested session block of a .maFile.
type MaFileSession struct {
	SteamID      string `json:"steamid,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// ToAccount validates the record and converts it to a domain account.
// The embedded session rides along untouched.
func (m MaFile) ToAccount() (*Account, error) {
	acct, err := NewAccount(m.AccountName, m.SteamID, m.SharedSecret, m.IdentitySecret, m.DeviceID)
	if err != nil {
		return nil, err
	}
	acct.RevocationCode = m.RevocationCode
	acct.SerialNumber = m.SerialNumber
	acct.URI = m.URI
	acct.TokenGID = m.TokenGID
	if m.Session.AccessToken != "" || m.Session.RefreshToken != "" {
		steamID := m.Session.SteamID
		if steamID == "" {
			steamID = m.SteamID
		}
		acct.Session = &Session{
			SteamID:      steamID,
			AccessToken:  m.Session.AccessToken,
			RefreshToken: m.Session.RefreshToken,
		}
	}
	return acct, nil
}

// MaFileFrom serializes an account back into the .maFile shape.
func MaFileFrom(a *Account) MaFile {
	m := MaFile{
		AccountName:    a.AccountName,
		SteamID:        a.SteamID,
		SharedSecret:   a.SharedSecretB64(),
		IdentitySecret: a.IdentitySecretB64(),
		DeviceID:       a.DeviceID,
		RevocationCode: a.RevocationCode,
		SerialNumber:   a.SerialNumber,
		URI:            a.URI,
		TokenGID:       a.TokenGID,
	}
	if a.Session != nil {
		m.Session = MaFileSession{
			SteamID:      a.Session.SteamID,
			AccessToken:  a.Session.AccessToken,
			RefreshToken: a.Session.RefreshToken,
		}
	}
	return m
}
