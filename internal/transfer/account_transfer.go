package transfer

type XAccountCreation struct {
	Label             string `json:"label"`
	ApiKey            string `json:"api_key"`
	ApiSecret         string `json:"api_secret"`
	AccessToken       string `json:"access_token"`
	AccessTokenSecret string `json:"access_token_secret"`
}

type XAccountInfo struct {
	ID        int64  `json:"id"`
	Label     string `json:"label"`
	Username  string `json:"username"`
	IsDefault bool   `json:"is_default"`
}
