package s3

// Config - параметры подключения к S3; заполняется из секции S3 общего конфига
type Config struct {
	Endpoint        string `mapstructure:"Endpoint"`
	Region          string `mapstructure:"Region"`
	AccessKeyID     string `mapstructure:"AccessKeyID"`
	SecretAccessKey string `mapstructure:"SecretAccessKey"`
	Bucket          string `mapstructure:"Bucket"`
	Prefix          string `mapstructure:"Prefix"`
	UsePathStyle    bool   `mapstructure:"UsePathStyle"`
}
